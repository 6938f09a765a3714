package models

import "time"

// ProviderStatus classifies a provider's licensing/visibility posture.
type ProviderStatus string

const (
	StatusLicensedActive   ProviderStatus = "licensed_active"
	StatusLicensedUnlisted ProviderStatus = "licensed_unlisted"
	StatusUnlicensedListed ProviderStatus = "unlicensed_listed"
	StatusUnknown          ProviderStatus = "unknown"
)

// ValidProviderStatuses is the set of all valid provider statuses.
var ValidProviderStatuses = []ProviderStatus{
	StatusLicensedActive,
	StatusLicensedUnlisted,
	StatusUnlicensedListed,
	StatusUnknown,
}

// IsValid returns true if the provider status is recognized.
func (ps ProviderStatus) IsValid() bool {
	for _, v := range ValidProviderStatuses {
		if ps == v {
			return true
		}
	}
	return false
}

// RiskTier ranks how urgently a provider warrants review.
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierHigh     RiskTier = "high"
	TierMedium   RiskTier = "medium"
	TierLow      RiskTier = "low"
	TierUnknown  RiskTier = "unknown"
)

// ValidRiskTiers is the set of all valid risk tiers.
var ValidRiskTiers = []RiskTier{
	TierCritical,
	TierHigh,
	TierMedium,
	TierLow,
	TierUnknown,
}

// IsValid returns true if the risk tier is recognized.
func (rt RiskTier) IsValid() bool {
	for _, v := range ValidRiskTiers {
		if rt == v {
			return true
		}
	}
	return false
}

// SourceChannel identifies where a record or evidence item came from.
type SourceChannel string

const (
	SourceMaps              SourceChannel = "maps"
	SourceAdPlatform        SourceChannel = "ad_platform"
	SourceDirectory         SourceChannel = "directory"
	SourceWebsite           SourceChannel = "website"
	SourceSocial            SourceChannel = "social"
	SourceChildcareRegistry SourceChannel = "childcare_registry"
	SourceBusinessRegistry  SourceChannel = "business_registry"
	SourceLaborRegistry     SourceChannel = "labor_registry"
	SourceManual            SourceChannel = "manual"
)

// ValidSourceChannels is the set of all valid source channels.
var ValidSourceChannels = []SourceChannel{
	SourceMaps,
	SourceAdPlatform,
	SourceDirectory,
	SourceWebsite,
	SourceSocial,
	SourceChildcareRegistry,
	SourceBusinessRegistry,
	SourceLaborRegistry,
	SourceManual,
}

// IsValid returns true if the source channel is recognized.
func (sc SourceChannel) IsValid() bool {
	for _, v := range ValidSourceChannels {
		if sc == v {
			return true
		}
	}
	return false
}

// EmailDomainType classifies the domain of a provider's contact email.
// The empty string means the email was never evaluated.
type EmailDomainType string

const (
	EmailDomainFree    EmailDomainType = "free"
	EmailDomainCustom  EmailDomainType = "custom"
	EmailDomainUnknown EmailDomainType = "unknown"
)

// Signals is the per-provider signal set: every observation the pipeline
// collects about a provider, consumed by the scorer and classifier.
type Signals struct {
	// Discovery channels.
	DiscoveredVia       []SourceChannel `json:"discovered_via,omitempty"`
	HasMapListing       bool            `json:"has_map_listing"`
	HasAdPresence       bool            `json:"has_ad_presence"`
	HasDirectoryListing bool            `json:"has_directory_listing"`

	// Map listing detail.
	MapPlaceID            *string    `json:"map_place_id,omitempty"`
	MapRating             *float64   `json:"map_rating,omitempty"`
	ReviewCount           *int       `json:"review_count,omitempty"`
	ReviewsRecent         bool       `json:"reviews_recent"`
	LastReviewTime        *time.Time `json:"last_review_time,omitempty"`
	LastReviewAgeDays     *float64   `json:"last_review_age_days,omitempty"`
	MapBusinessStatus     *string    `json:"map_business_status,omitempty"`
	MapOpenNow            *bool      `json:"map_open_now,omitempty"`
	HasGeocodedLocation   bool       `json:"has_geocoded_location"`
	VisitorActivityLikely bool       `json:"visitor_activity_likely"`

	// Social presence.
	HasFacebookPage      bool `json:"has_facebook_page"`
	HasXProfile          bool `json:"has_x_profile"`
	HasLinkedInPage      bool `json:"has_linkedin_page"`
	SocialRecentActivity bool `json:"social_recent_activity"`

	// Government registries.
	HasBusinessRegistration bool    `json:"has_business_registration"`
	BusinessRegistryName    *string `json:"business_registry_name,omitempty"`
	BusinessRegistryActive  bool    `json:"business_registry_active"`
	HasLaborLicense         bool    `json:"has_labor_license"`
	LaborLicenseNumber      *string `json:"labor_license_number,omitempty"`
	LaborLicenseActive      bool    `json:"labor_license_active"`
	HasChildcareLicense     bool    `json:"has_childcare_license"`
	ChildcareLicenseNumber  *string `json:"childcare_license_number,omitempty"`
	ChildcareLicenseActive  bool    `json:"childcare_license_active"`
	NameMismatchWithLicense bool    `json:"name_mismatch_with_license"`

	// Website content.
	WebsiteReachable           bool       `json:"website_reachable"`
	WebsiteHTTPStatus          *int       `json:"website_http_status,omitempty"`
	WebsiteTitle               *string    `json:"website_title,omitempty"`
	WebsiteMetaDescription     *string    `json:"website_meta_description,omitempty"`
	WebsiteHasLicenseLanguage  bool       `json:"website_has_license_language"`
	WebsiteHasRegulatorMention bool       `json:"website_has_regulator_mention"`
	WebsiteHasContactPage      bool       `json:"website_has_contact_page"`
	WebsiteHasPhotos           bool       `json:"website_has_photos"`
	WebsiteHasStaffBios        bool       `json:"website_has_staff_bios"`
	WebsiteLastCrawled         *time.Time `json:"website_last_crawled,omitempty"`

	// Contact email.
	EmailDomainType EmailDomainType `json:"email_domain_type,omitempty"`

	// Peer cohort statistics.
	CityReviewRank          *int     `json:"city_review_rank,omitempty"`
	CityReviewPercentile    *float64 `json:"city_review_percentile,omitempty"`
	CityLowActivityOutlier  bool     `json:"city_low_activity_outlier"`
	CityHighActivityOutlier bool     `json:"city_high_activity_outlier"`

	// Naming heuristics.
	NameGenericScore         float64 `json:"name_generic_score"`
	NameContainsLocationTerm bool    `json:"name_contains_location_term"`
	NameContainsPersonalName bool    `json:"name_contains_personal_name"`

	// Shared contact-points (nil = provider has no address/phone on record).
	SharedAddressCount *int `json:"shared_address_count,omitempty"`
	SharedPhoneCount   *int `json:"shared_phone_count,omitempty"`

	// Scores (filled by the scorer).
	SuspicionScore  float64 `json:"suspicion_score"`
	LegitimacyScore float64 `json:"legitimacy_score"`
}

// Visible reports whether the provider is advertising itself anywhere the
// public would find it: any discovery channel or social platform.
func (s *Signals) Visible() bool {
	return s.HasMapListing || s.HasAdPresence || s.HasDirectoryListing ||
		s.HasFacebookPage || s.HasXProfile || s.HasLinkedInPage
}

// Licensed reports whether the provider holds an active childcare license.
func (s *Signals) Licensed() bool {
	return s.HasChildcareLicense && s.ChildcareLicenseActive
}

// SuspicionIndex is the suspicion score net of legitimacy. May be negative.
func (s *Signals) SuspicionIndex() float64 {
	return s.SuspicionScore - s.LegitimacyScore
}

/// InvestigationTrail records what the pipeline did to a provider: the stages
// that ran, non-fatal errors hit along the way, and every evidence id filed.
type InvestigationTrail struct {
	Steps       []string `json:"steps,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// AddStep appends a stage note to the trail.
func (t *InvestigationTrail) AddStep(step string) {
	t.Steps = append(t.Steps, step)
}

// AddError appends a non-fatal error note to the trail.
func (t *InvestigationTrail) AddError(msg string) {
	t.Errors = append(t.Errors, msg)
}

// AddEvidence links a ledger item id to the trail.
func (t *InvestigationTrail) AddEvidence(id string) {
	t.EvidenceIDs = append(t.EvidenceIDs, id)
}

// Provider is the canonical deduplicated childcare-provider entity.
type Provider struct {
	ID             string   `json:"id"`
	NormalizedName string   `json:"normalized_name"`
	RawNames       []string `json:"raw_names,omitempty"`

	Address      *string  `json:"address,omitempty"`
	City         *string  `json:"city,omitempty"`
	County       *string  `json:"county,omitempty"`
	State        *string  `json:"state,omitempty"`
	PostalCode   *string  `json:"postal_code,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	Website      *string  `json:"website,omitempty"`
	PrimaryEmail *string  `json:"primary_email,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	Signals Signals `json:"signals"`

	Status          ProviderStatus     `json:"status"`
	RiskTier        RiskTier           `json:"risk_tier"`
	DecisionReasons []string           `json:"decision_reasons,omitempty"`
	Investigation   InvestigationTrail `json:"investigation"`

	ManualLabel *string `json:"manual_label,omitempty"`
	ManualNotes *string `json:"manual_notes,omitempty"`
}

// Clone returns a deep copy of the provider. Slices, maps, and pointer
// fields are duplicated so mutating the copy never touches the original.
func (p *Provider) Clone() Provider {
	c := *p
	c.RawNames = append([]string(nil), p.RawNames...)
	c.DecisionReasons = append([]string(nil), p.DecisionReasons...)
	c.Investigation.Steps = append([]string(nil), p.Investigation.Steps...)
	c.Investigation.Errors = append([]string(nil), p.Investigation.Errors...)
	c.Investigation.EvidenceIDs = append([]string(nil), p.Investigation.EvidenceIDs...)
	c.Address = cloneStr(p.Address)
	c.City = cloneStr(p.City)
	c.County = cloneStr(p.County)
	c.State = cloneStr(p.State)
	c.PostalCode = cloneStr(p.PostalCode)
	c.Phone = cloneStr(p.Phone)
	c.Website = cloneStr(p.Website)
	c.PrimaryEmail = cloneStr(p.PrimaryEmail)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	c.ManualLabel = cloneStr(p.ManualLabel)
	c.ManualNotes = cloneStr(p.ManualNotes)
	c.Signals = p.Signals.clone()
	return c
}

func (s *Signals) clone() Signals {
	c := *s
	c.DiscoveredVia = append([]SourceChannel(nil), s.DiscoveredVia...)
	c.MapPlaceID = cloneStr(s.MapPlaceID)
	c.MapRating = cloneFloat(s.MapRating)
	c.ReviewCount = cloneInt(s.ReviewCount)
	c.LastReviewTime = cloneTime(s.LastReviewTime)
	c.LastReviewAgeDays = cloneFloat(s.LastReviewAgeDays)
	c.MapBusinessStatus = cloneStr(s.MapBusinessStatus)
	c.MapOpenNow = cloneBool(s.MapOpenNow)
	c.BusinessRegistryName = cloneStr(s.BusinessRegistryName)
	c.LaborLicenseNumber = cloneStr(s.LaborLicenseNumber)
	c.ChildcareLicenseNumber = cloneStr(s.ChildcareLicenseNumber)
	c.WebsiteHTTPStatus = cloneInt(s.WebsiteHTTPStatus)
	c.WebsiteTitle = cloneStr(s.WebsiteTitle)
	c.WebsiteMetaDescription = cloneStr(s.WebsiteMetaDescription)
	c.WebsiteLastCrawled = cloneTime(s.WebsiteLastCrawled)
	c.CityReviewRank = cloneInt(s.CityReviewRank)
	c.CityReviewPercentile = cloneFloat(s.CityReviewPercentile)
	c.SharedAddressCount = cloneInt(s.SharedAddressCount)
	c.SharedPhoneCount = cloneInt(s.SharedPhoneCount)
	return c
}

func cloneStr(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// StrPtr returns a pointer to s. Convenience for optional fields.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
