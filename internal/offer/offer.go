package offer

import "strings"

// Column names of the offer table. The store accepts patches keyed by these
// names; they match the historical French schema and are kept verbatim so
// existing data remains readable.
const (
	ColID          = "id"
	ColOfferID     = "id_offre"
	ColURL         = "url"
	ColStatus      = "Statut"
	ColSource      = "Source"
	ColCreatedVia  = "Méthode_Création"
	ColTitle       = "Poste"
	ColCompany     = "Entreprise"
	ColCity        = "Ville"
	ColDepartment  = "Service"
	ColSalary      = "Salaire"
	ColPostedAt    = "Date_Offre"
	ColFullText    = "Texte_Offre"
	ColSummary     = "Résumé_IA"
	ColScoreTotal  = "Score_Total"
	ColVerdict     = "Verdict"
	ColScoreLoc    = "Score_Localisation"
	ColScoreSalary = "Score_Salaire"
	ColScoreCult   = "Score_Culture"
	ColScoreQual   = "Score_Qualité_Offre"
	ColScoreOpt1   = "Score_Optionnel_1"
	ColScoreOpt2   = "Score_Optionnel_2"
	ColScoreOpt3   = "Score_Optionnel_3"
	ColScoreOpt4   = "Score_Optionnel_4"
)

// Creation methods recorded in Méthode_Création.
const (
	CreatedViaEmail  = "email"
	CreatedViaPage   = "page"
	CreatedViaManual = "manuelle"
)

// Offer is the central entity: a job posting tracked through its
// enrichment/analysis lifecycle. The id is generated internally and stable
// once assigned; (id_offre, url) form the natural key used for deduplication.
type Offer struct {
	ID         string `gorm:"column:id;primaryKey"`
	OfferID    string `gorm:"column:id_offre;index"`
	URL        string `gorm:"column:url;index"`
	Status     Status `gorm:"column:Statut;index"`
	Source     string `gorm:"column:Source;index"`
	CreatedVia string `gorm:"column:Méthode_Création"`

	Title      string `gorm:"column:Poste"`
	Company    string `gorm:"column:Entreprise"`
	City       string `gorm:"column:Ville"`
	Department string `gorm:"column:Service"`
	Salary     string `gorm:"column:Salaire"`
	PostedAt   string `gorm:"column:Date_Offre"`
	FullText   string `gorm:"column:Texte_Offre"`

	Summary       string  `gorm:"column:Résumé_IA"`
	ScoreLocation int     `gorm:"column:Score_Localisation"`
	ScoreSalary   int     `gorm:"column:Score_Salaire"`
	ScoreCulture  int     `gorm:"column:Score_Culture"`
	ScoreQuality  int     `gorm:"column:Score_Qualité_Offre"`
	ScoreOpt1     int     `gorm:"column:Score_Optionnel_1"`
	ScoreOpt2     int     `gorm:"column:Score_Optionnel_2"`
	ScoreOpt3     int     `gorm:"column:Score_Optionnel_3"`
	ScoreOpt4     int     `gorm:"column:Score_Optionnel_4"`
	ScoreTotal    float64 `gorm:"column:Score_Total"`
	Verdict       string  `gorm:"column:Verdict"`
}

func (Offer) TableName() string { return "offres" }

// Identity returns a short human-readable identifier for diagnostics,
// preferring the natural id over the URL.
func (o *Offer) Identity() string {
	if strings.TrimSpace(o.OfferID) != "" {
		return o.OfferID
	}
	if strings.TrimSpace(o.URL) != "" {
		return o.URL
	}
	return o.ID
}

// Fields is the partial content bag an enrichment fetch may return. Blank
// entries are treated as absent; enrichment never touches identity, status
// or analysis columns.
type Fields struct {
	FullText   string
	Title      string
	Company    string
	City       string
	Department string
	Salary     string
	PostedAt   string
}

// IsBlank reports whether every field is empty or whitespace.
func (f Fields) IsBlank() bool {
	for _, v := range []string{f.FullText, f.Title, f.Company, f.City, f.Department, f.Salary, f.PostedAt} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// MergeInto copies non-blank fields onto the offer without overwriting
// columns the offer already carries. Title, company and city belong to the
// creation stage, so enrichment only fills them when still empty.
func (f Fields) MergeInto(o *Offer) {
	merge := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	merge(&o.FullText, f.FullText)
	merge(&o.Title, f.Title)
	merge(&o.Company, f.Company)
	merge(&o.City, f.City)
	merge(&o.Department, f.Department)
	merge(&o.Salary, f.Salary)
	merge(&o.PostedAt, f.PostedAt)
}

// SufficientForAnalysis is the rule deciding whether an offer carries enough
// content to be scored: the full text must be present, backed by at least one
// supporting field (title, company, city, department, salary or posting
// date).
func (o *Offer) SufficientForAnalysis() bool {
	if strings.TrimSpace(o.FullText) == "" {
		return false
	}
	for _, v := range []string{o.Title, o.Company, o.City, o.Department, o.Salary, o.PostedAt} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
