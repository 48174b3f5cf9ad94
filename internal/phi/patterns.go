package phi

// PatternSpec is the declarative, uncompiled form of a detection rule. The
// default table below ships with the engine; deployments may append custom
// specs or disable individual IDs through configuration. Specs are data, not
// logic: a new rule set is deployed by replacing the whole table so that
// detection behavior stays auditable and reproducible.
type PatternSpec struct {
	ID             string     `yaml:"id" mapstructure:"id"`
	EntityType     EntityType `yaml:"entity_type" mapstructure:"entity_type"`
	Tiers          []Tier     `yaml:"tiers" mapstructure:"tiers"`
	Expression     string     `yaml:"expression" mapstructure:"expression"`
	HIPAACategory  string     `yaml:"hipaa_category" mapstructure:"hipaa_category"`
	Description    string     `yaml:"description" mapstructure:"description"`
	BaseConfidence float64    `yaml:"base_confidence" mapstructure:"base_confidence"`
	Severity       Severity   `yaml:"severity" mapstructure:"severity"`
}

var bothTiers = []Tier{TierHighConfidence, TierOutputGuard}
var guardOnly = []Tier{TierOutputGuard}

// DefaultPatternTable returns the canonical rule set, in evaluation order.
// Order is part of the contract: overlapping matches are discovered in table
// order, so reordering changes externally observable tie-breaking.
func DefaultPatternTable() []PatternSpec {
	return []PatternSpec{
		{
			ID:             "ssn-dashed",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(G) - Social Security numbers",
			Description:    "Social Security number with dash or space separators",
			BaseConfidence: 0.90,
			Severity:       SeverityHigh,
		},
		{
			ID:             "mrn-labeled",
			EntityType:     EntityMRN,
			Tiers:          bothTiers,
			Expression:     `(?i)\bMRN[:\s#]*\d{4,12}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(H) - Medical record numbers",
			Description:    "Medical record number introduced by an MRN label",
			BaseConfidence: 0.85,
			Severity:       SeverityHigh,
		},
		{
			ID:             "email",
			EntityType:     EntityEmail,
			Tiers:          bothTiers,
			Expression:     `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(D) - Email addresses",
			Description:    "Email address",
			BaseConfidence: 0.90,
			Severity:       SeverityMedium,
		},
		{
			ID:             "phone-us",
			EntityType:     EntityPhone,
			Tiers:          bothTiers,
			Expression:     `(?:\(\d{3}\)\s*\d{3}[-.]\d{4}|\b\d{3}[-.]\d{3}[-.]\d{4}\b)`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(C) - Telephone numbers",
			Description:    "North American phone number with separators",
			BaseConfidence: 0.75,
			Severity:       SeverityMedium,
		},
		{
			ID:             "dob-labeled",
			EntityType:     EntityDOB,
			Tiers:          bothTiers,
			Expression:     `(?i)\b(?:DOB|date\s*of\s*birth)[:\s]*\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(B) - Birth dates",
			Description:    "Date of birth introduced by a DOB label",
			BaseConfidence: 0.85,
			Severity:       SeverityMedium,
		},
		{
			ID:             "health-plan-id",
			EntityType:     EntityHealthPlan,
			Tiers:          bothTiers,
			Expression:     `(?i)\b(?:member|policy|insurance|medicare|medicaid)\s*(?:id|no|number|#)[:\s]*[A-Za-z0-9\-]{4,20}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(I) - Health plan beneficiary numbers",
			Description:    "Health plan beneficiary or policy number with a label",
			BaseConfidence: 0.80,
			Severity:       SeverityHigh,
		},
		{
			ID:             "account-number",
			EntityType:     EntityAccount,
			Tiers:          bothTiers,
			Expression:     `(?i)\b(?:account|acct)\s*(?:no|number|#)?[:\s#]+\d{4,20}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(J) - Account numbers",
			Description:    "Account number introduced by an account label",
			BaseConfidence: 0.80,
			Severity:       SeverityHigh,
		},
		{
			ID:             "rx-number",
			EntityType:     EntityRxNumber,
			Tiers:          bothTiers,
			Expression:     `(?i)\b(?:rx|prescription)\s*(?:no|number|#)?[:\s#]+\d{5,12}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(J) - Account numbers",
			Description:    "Prescription number introduced by an Rx label",
			BaseConfidence: 0.75,
			Severity:       SeverityMedium,
		},
		{
			ID:             "name-labeled",
			EntityType:     EntityName,
			Tiers:          guardOnly,
			Expression:     `(?:(?i:\bpatient|\bname)[:\s]+)[A-Z][a-z]+\s[A-Z][a-z]+\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(A) - Names",
			Description:    "Capitalized first and last name following a patient or name label",
			BaseConfidence: 0.60,
			Severity:       SeverityMedium,
		},
		{
			ID:             "street-address",
			EntityType:     EntityAddress,
			Tiers:          guardOnly,
			Expression:     `\b\d{1,6}\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Street|St|Avenue|Ave|Boulevard|Blvd|Drive|Dr|Road|Rd|Lane|Ln|Court|Ct|Way|Place|Pl|Circle|Cir)\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(B) - Geographic subdivisions",
			Description:    "Street address with number, name and suffix",
			BaseConfidence: 0.70,
			Severity:       SeverityMedium,
		},
		{
			ID:             "zip-plus-four",
			EntityType:     EntityZipCode,
			Tiers:          guardOnly,
			Expression:     `\b\d{5}-\d{4}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(B) - Geographic subdivisions",
			Description:    "ZIP+4 postal code; bare five-digit runs are too ambiguous",
			BaseConfidence: 0.65,
			Severity:       SeverityLow,
		},
		{
			ID:             "license-number",
			EntityType:     EntityLicense,
			Tiers:          guardOnly,
			Expression:     `(?i)\b(?:license|lic|certificate)\s*(?:no|number|#)[:\s]*[A-Za-z0-9\-]{4,15}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(K) - Certificate/license numbers",
			Description:    "Certificate or license number with a label",
			BaseConfidence: 0.70,
			Severity:       SeverityMedium,
		},
		{
			ID:             "device-serial",
			EntityType:     EntityDeviceID,
			Tiers:          guardOnly,
			Expression:     `(?i)\b(?:device|serial)\s*(?:id|no|number|#)[:\s]*[A-Za-z0-9\-]{5,20}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(M) - Device identifiers and serial numbers",
			Description:    "Device identifier or serial number with a label",
			BaseConfidence: 0.70,
			Severity:       SeverityMedium,
		},
		{
			ID:             "lab-specimen-id",
			EntityType:     EntityLabID,
			Tiers:          guardOnly,
			Expression:     `(?i)\b(?:lab|specimen|accession)\s*(?:id|no|number|#)[:\s]*[A-Za-z0-9\-]{4,15}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(H) - Medical record numbers",
			Description:    "Laboratory or specimen identifier with a label",
			BaseConfidence: 0.60,
			Severity:       SeverityLow,
		},
		{
			ID:             "url",
			EntityType:     EntityURL,
			Tiers:          guardOnly,
			Expression:     `\bhttps?://[^\s"'<>]+`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(N) - Web URLs",
			Description:    "HTTP or HTTPS URL",
			BaseConfidence: 0.60,
			Severity:       SeverityLow,
		},
		{
			ID:             "ipv4",
			EntityType:     EntityIPAddress,
			Tiers:          guardOnly,
			Expression:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(O) - IP addresses",
			Description:    "IPv4 address",
			BaseConfidence: 0.70,
			Severity:       SeverityLow,
		},
		{
			ID:             "age-over-89",
			EntityType:     EntityAgeOver89,
			Tiers:          guardOnly,
			Expression:     `\b(?:9\d|1[0-4]\d)[\s-](?:year|yr)s?[\s-]old\b`,
			HIPAACategory:  "45 CFR 164.514(b)(2)(i)(C) - Ages over 89",
			Description:    "Stated age of 90 or above",
			BaseConfidence: 0.75,
			Severity:       SeverityLow,
		},
	}
}
