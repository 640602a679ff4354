package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"tendertrack/models"
)

var (
	// gem в начале слова: GeM, GeMBids, GEMTenders2025; но не Management
	gemRE    = regexp.MustCompile(`(?i)\bgem`)
	nonGemRE = regexp.MustCompile(`(?i)\bnon[\s_-]*gem`)
	portalRE = regexp.MustCompile(`(?i)\b(portal|cppp|eprocure|e-procurement|etender)\b`)
)

// Категория строки тендера
type TenderClass struct {
	Source models.TenderSource
	Status models.TenderStatus
}

// Категория строки результата относительно отслеживаемой компании
type ResultClass struct {
	Status                      models.TenderStatus
	AwardedTo                   string
	IsTrackedCompanyWinner      bool
	IsTrackedCompanyParticipant bool
}

// Classifier определяет источник тендера и исход результата.
type Classifier struct {
	trackedCompany string
	scorer         Scorer
}

// NewClassifier создает классификатор для компании trackedCompany.
// scorer == nil -> KeywordScorer по умолчанию.
func NewClassifier(trackedCompany string, scorer Scorer) *Classifier {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	return &Classifier{
		trackedCompany: strings.ToLower(NormalizeText(trackedCompany, "")),
		scorer:         scorer,
	}
}

// Classify определяет источник и статус строки тендера.
func (c *Classifier) Classify(row TenderRow, sheetName string) TenderClass {
	return TenderClass{
		Source: classifySource(row.SourceLabel, row.Organization, row.Title, sheetName),
		Status: models.StatusActive,
	}
}

// Score дает эвристическую оценку релевантности заголовка.
func (c *Classifier) Score(title string) int {
	return c.scorer.Score(title)
}

func classifySource(label string, texts ...string) models.TenderSource {
	label = strings.ReplaceAll(label, "_", " ")
	if label != "" {
		switch {
		case nonGemRE.MatchString(label):
			return models.SourceNonGem
		case gemRE.MatchString(label):
			return models.SourceGem
		case portalRE.MatchString(label):
			return models.SourcePortal
		}
	}
	for _, t := range texts {
		t = strings.ReplaceAll(t, "_", " ")
		if gemRE.MatchString(nonGemRE.ReplaceAllString(t, " ")) {
			return models.SourceGem
		}
	}
	return models.SourceNonGem
}

// ClassifyResult: компания в awardedTo -> won, среди участников -> lost, иначе missed_opportunity.
func (c *Classifier) ClassifyResult(row ResultRow) ResultClass {
	rc := ResultClass{AwardedTo: row.AwardedTo}
	if c.trackedCompany == "" {
		rc.Status = models.StatusMissedOpportunity
		return rc
	}

	rc.IsTrackedCompanyWinner = strings.Contains(strings.ToLower(row.AwardedTo), c.trackedCompany)
	if !rc.IsTrackedCompanyWinner {
		for _, bidder := range row.Bidders {
			if strings.Contains(strings.ToLower(bidder), c.trackedCompany) {
				rc.IsTrackedCompanyParticipant = true
				break
			}
		}
	} else {
		rc.IsTrackedCompanyParticipant = true
	}

	switch {
	case rc.IsTrackedCompanyWinner:
		rc.Status = models.StatusWon
	case rc.IsTrackedCompanyParticipant:
		rc.Status = models.StatusLost
	default:
		rc.Status = models.StatusMissedOpportunity
	}
	return rc
}

// Scorer оценивает релевантность тендера по заголовку (0..100).
type Scorer interface {
	Score(title string) int
}

// KeywordScorer: базовый балл плюс шаг за каждое найденное ключевое слово, не выше потолка.
type KeywordScorer struct {
	Base     int
	Step     int
	Cap      int
	Keywords []string
}

// DefaultScorer возвращает эвристику по IT-словам.
func DefaultScorer() KeywordScorer {
	return KeywordScorer{
		Base:     40,
		Step:     10,
		Cap:      85,
		Keywords: []string{"software", "it", "technology", "digital", "system", "web", "mobile"},
	}
}

func (s KeywordScorer) Score(title string) int {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	score := s.Base
	for _, k := range s.Keywords {
		if words[k] {
			score += s.Step
		}
	}
	return max(0, min(score, s.Cap, 100))
}
