package detect

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds every tunable of the detector.
type Config struct {
	// Verification
	MinDescriptionLength int `json:"min_description_length" validate:"gte=1"`

	// Strategy thresholds
	MinSectionLength      int `json:"min_section_length" validate:"gte=0"`
	MinClusterBlockLength int `json:"min_cluster_block_length" validate:"gte=0"`
	MinMainContentLength  int `json:"min_main_content_length" validate:"gte=0"`
	MinFallbackPageLength int `json:"min_fallback_page_length" validate:"gte=0"`
	MinFallbackLineLength int `json:"min_fallback_line_length" validate:"gte=0"`
	MaxCompanyNameLength  int `json:"max_company_name_length" validate:"gte=1"`

	// Scoring
	BaseScores                map[Method]int `json:"base_scores" validate:"required,dive,gte=0,lte=100"`
	LongDescriptionLength     int            `json:"long_description_length" validate:"gte=0"`
	VeryLongDescriptionLength int            `json:"very_long_description_length" validate:"gtefield=LongDescriptionLength"`
	LengthBonus               int            `json:"length_bonus" validate:"gte=0,lte=100"`
	KeywordBonus              int            `json:"keyword_bonus" validate:"gte=0,lte=100"`
	KeywordBonusCap           int            `json:"keyword_bonus_cap" validate:"gte=0,lte=100"`
	TitleBonus                int            `json:"title_bonus" validate:"gte=0,lte=100"`
	CompanyBonus              int            `json:"company_bonus" validate:"gte=0,lte=100"`

	// Keyword lists
	SectionKeywords []string `json:"section_keywords" validate:"min=1,dive,required"`
	CompanyKeywords []string `json:"company_keywords" validate:"dive,required"`
	ScoringKeywords []string `json:"scoring_keywords" validate:"dive,required"`
}

// DefaultConfig returns the simplified scoring table (site-specific 50). The
// bonuses add at most 60, so for identical content site-specific > semantic >
// cluster > fallback holds even after clamping.
func DefaultConfig() Config {
	return Config{
		MinDescriptionLength:  100,
		MinSectionLength:      50,
		MinClusterBlockLength: 100,
		MinMainContentLength:  200,
		MinFallbackPageLength: 500,
		MinFallbackLineLength: 30,
		MaxCompanyNameLength:  50,

		BaseScores: map[Method]int{
			MethodSiteSpecific: 50,
			MethodSchema:       45,
			MethodSemantic:     30,
			MethodCluster:      20,
			MethodFallback:     10,
		},
		LongDescriptionLength:     300,
		VeryLongDescriptionLength: 1000,
		LengthBonus:               10,
		KeywordBonus:              5,
		KeywordBonusCap:           20,
		TitleBonus:                10,
		CompanyBonus:              10,

		SectionKeywords: []string{
			"job description",
			"responsibilities",
			"requirements",
			"qualifications",
			"about this role",
			"what you'll do",
			"about the job",
			"role overview",
			"position summary",
			"the role",
			"key responsibilities",
			"job summary",
			"duties",
		},
		CompanyKeywords: []string{
			"about us",
			"about the company",
			"who we are",
			"company",
		},
		ScoringKeywords: []string{
			"responsibilities",
			"requirements",
			"qualifications",
			"experience",
			"skills",
			"about the role",
			"job description",
		},
	}
}

// LegacyConfig returns the fixed-confidence table used by the content script
// (site-specific 95, semantic 80, cluster 70).
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseScores = map[Method]int{
		MethodSiteSpecific: 95,
		MethodSchema:       90,
		MethodSemantic:     80,
		MethodCluster:      70,
		MethodFallback:     40,
	}
	return cfg
}

// Validate checks ranges and that every method has a base score.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid detector config: %w", err)
	}
	for _, m := range AllMethods {
		if _, ok := c.BaseScores[m]; !ok {
			return fmt.Errorf("invalid detector config: missing base score for %q", m)
		}
	}
	return nil
}
