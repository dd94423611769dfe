package domain

import (
	"errors"
	"strings"
)

// BusinessDayHours is one row of a weekly opening-hours table.
type BusinessDayHours struct {
	Day    string `json:"day" yaml:"day"`
	Open   string `json:"open,omitempty" yaml:"open,omitempty"`
	Close  string `json:"close,omitempty" yaml:"close,omitempty"`
	Closed bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
}

type BusinessHours struct {
	Timezone string             `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Weekly   []BusinessDayHours `json:"weekly,omitempty" yaml:"weekly,omitempty"`
	Notes    string             `json:"notes,omitempty" yaml:"notes,omitempty"`
	Display  string             `json:"display,omitempty" yaml:"display,omitempty"`
}

// DisplayText returns the preformatted display string when present, else a
// "Mon 9-5; Tue closed" style rendering of the weekly table.
func (h BusinessHours) DisplayText() string {
	if strings.TrimSpace(h.Display) != "" {
		return h.Display
	}
	parts := make([]string, 0, len(h.Weekly)+1)
	for _, day := range h.Weekly {
		switch {
		case day.Closed:
			parts = append(parts, day.Day+" closed")
		case day.Open != "" && day.Close != "":
			parts = append(parts, day.Day+" "+day.Open+"-"+day.Close)
		case day.Open != "":
			parts = append(parts, day.Day+" "+day.Open)
		}
	}
	if strings.TrimSpace(h.Notes) != "" {
		parts = append(parts, h.Notes)
	}
	return strings.Join(parts, "; ")
}

type BusinessDetails struct {
	Name        string         `json:"name" yaml:"name"`
	Website     string         `json:"website,omitempty" yaml:"website,omitempty"`
	Address     string         `json:"address,omitempty" yaml:"address,omitempty"`
	City        string         `json:"city,omitempty" yaml:"city,omitempty"`
	State       string         `json:"state,omitempty" yaml:"state,omitempty"`
	PostalCode  string         `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Phone       string         `json:"phone,omitempty" yaml:"phone,omitempty"`
	Hours       *BusinessHours `json:"hours,omitempty" yaml:"hours,omitempty"`
	ServiceArea string         `json:"service_area,omitempty" yaml:"service_area,omitempty"`
}

// CreativeBrief is the immutable input to one creative run.
type CreativeBrief struct {
	CampaignID      string          `json:"campaign_id,omitempty" yaml:"campaign_id,omitempty"`
	BusinessDetails BusinessDetails `json:"business_details" yaml:"business_details"`
	Product         string          `json:"product" yaml:"product"`
	Offer           string          `json:"offer" yaml:"offer"`
	Tone            string          `json:"tone" yaml:"tone"`
	CTA             string          `json:"cta" yaml:"cta"`
	Size            string          `json:"size,omitempty" yaml:"size,omitempty"`
	Audience        string          `json:"audience,omitempty" yaml:"audience,omitempty"`
	Constraints     []string        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	BrandColors     []string        `json:"brand_colors,omitempty" yaml:"brand_colors,omitempty"`
	StyleKeywords   []string        `json:"style_keywords,omitempty" yaml:"style_keywords,omitempty"`
	ReferenceImages []string        `json:"reference_images,omitempty" yaml:"reference_images,omitempty"`
}

func (b CreativeBrief) Validate() error {
	if strings.TrimSpace(b.BusinessDetails.Name) == "" {
		return errors.New("business name is required")
	}
	if strings.TrimSpace(b.Product) == "" {
		return errors.New("product is required")
	}
	if strings.TrimSpace(b.Offer) == "" {
		return errors.New("offer is required")
	}
	return nil
}

func (b CreativeBrief) BusinessName() string {
	if name := strings.TrimSpace(b.BusinessDetails.Name); name != "" {
		return name
	}
	return "Unknown Business"
}

// AudienceOrDefault fills the default audience used across prompt templates.
func (b CreativeBrief) AudienceOrDefault() string {
	if strings.TrimSpace(b.Audience) != "" {
		return b.Audience
	}
	return "local households"
}
