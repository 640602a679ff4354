package ingest

import (
	"strings"
	"unicode"
)

// Логическое поле, которое ищется среди заголовков листа
type Field string

const (
	FieldTitle         Field = "title"
	FieldOrganization  Field = "organization"
	FieldContractValue Field = "contractValue"
	FieldValue         Field = "value"
	FieldDeadline      Field = "deadline"
	FieldResultDate    Field = "resultDate"
	FieldReferenceNo   Field = "referenceNo"
	FieldLocation      Field = "location"
	FieldDepartment    Field = "department"
	FieldCategory      Field = "category"
	FieldSource        Field = "source"
	FieldLink          Field = "link"
	FieldDescription   Field = "description"
	FieldAwardedTo     Field = "awardedTo"
	FieldBidders       Field = "participatorBidders"
)

// Синонимы заголовка для поля (порядок важен)
type FieldSynonyms struct {
	Field    Field
	Synonyms []string
}

// HeaderProfile задает порядок разрешения полей: колонка, занятая
// более ранним полем, не достается последующим.
type HeaderProfile []FieldSynonyms

// DefaultProfile покрывает и листы тендеров, и листы результатов.
var DefaultProfile = HeaderProfile{
	{FieldTitle, []string{"title", "tender brief", "brief", "name of work", "work name", "work description", "work", "subject", "item", "tender name", "tender"}},
	{FieldOrganization, []string{"organization", "organisation", "org", "buyer", "ministry", "department", "dept", "authority", "client"}},
	{FieldContractValue, []string{"contract value", "awarded value", "contract amount", "order value", "l1 price", "l1 value"}},
	{FieldValue, []string{"estimated cost", "estimated value", "tender value", "ecv", "value", "amount", "budget", "cost", "price"}},
	{FieldDeadline, []string{"deadline", "due date", "closing date", "last date", "bid end", "end date", "submission date", "due", "closing"}},
	{FieldResultDate, []string{"result date", "award date", "date of award", "aoc date", "result", "date"}},
	{FieldReferenceNo, []string{"reference no", "reference number", "ref no", "reference", "tender id", "bid number", "bid no", "bid id", "tender no", "nit no"}},
	{FieldLocation, []string{"location", "place", "city", "state", "district"}},
	{FieldDepartment, []string{"department", "dept", "division", "ministry"}},
	{FieldCategory, []string{"category", "sector", "domain", "type"}},
	{FieldSource, []string{"source", "portal", "platform"}},
	{FieldLink, []string{"link", "url", "website"}},
	{FieldDescription, []string{"description", "details", "scope", "remarks"}},
	{FieldAwardedTo, []string{"awarded to", "awarded", "winner", "successful bidder", "l1 bidder", "aoc to"}},
	{FieldBidders, []string{"participator", "participant", "bidders", "bidder", "participated"}},
}

// Слова, по которым строка признается заголовком
var DefaultHeaderKeywords = []string{
	"title", "organization", "organisation", "value", "deadline", "tender", "work", "brief",
	"dept", "department", "budget", "cost", "due", "date", "reference", "location",
	"awarded", "bidder", "participant", "category", "amount", "ministry",
}

const (
	headerScanRows     = 3
	headerKeywordsNeed = 2
)

// ColumnMap хранит индексы колонок; отсутствующее поле дает -1.
type ColumnMap map[Field]int

// Index возвращает индекс колонки поля или -1.
func (m ColumnMap) Index(f Field) int {
	if idx, ok := m[f]; ok {
		return idx
	}
	return -1
}

// Has сообщает, найдено ли поле.
func (m ColumnMap) Has(f Field) bool {
	return m.Index(f) >= 0
}

// Итог разрешения заголовков листа
type HeaderResult struct {
	HeaderRow int // индекс строки заголовка, -1 если не найден
	Columns   ColumnMap
}

// Found сообщает, найден ли заголовок.
func (h HeaderResult) Found() bool {
	return h.HeaderRow >= 0
}

// HeaderResolver находит строку заголовка и строит карту колонок.
type HeaderResolver struct {
	profile  []FieldSynonyms
	keywords []string
}

// NewHeaderResolver создает резолвер; nil-параметры заменяются значениями по умолчанию.
func NewHeaderResolver(profile HeaderProfile, keywords []string) *HeaderResolver {
	if len(profile) == 0 {
		profile = DefaultProfile
	}
	if len(keywords) == 0 {
		keywords = DefaultHeaderKeywords
	}
	r := &HeaderResolver{}
	for _, fs := range profile {
		norm := FieldSynonyms{Field: fs.Field}
		for _, s := range fs.Synonyms {
			if s = normalizeHeader(s); s != "" {
				norm.Synonyms = append(norm.Synonyms, s)
			}
		}
		r.profile = append(r.profile, norm)
	}
	for _, k := range keywords {
		if k = normalizeHeader(k); k != "" {
			r.keywords = append(r.keywords, k)
		}
	}
	return r
}

// Resolve просматривает первые строки листа. Если заголовок не найден,
// HeaderRow = -1 и лист следует пропустить.
func (r *HeaderResolver) Resolve(rows [][]string) HeaderResult {
	limit := min(headerScanRows, len(rows))
	for i := 0; i < limit; i++ {
		cells := make([]string, len(rows[i]))
		for j, c := range rows[i] {
			cells[j] = normalizeHeader(c)
		}
		if r.keywordHits(cells) >= headerKeywordsNeed {
			return HeaderResult{HeaderRow: i, Columns: r.mapColumns(cells)}
		}
	}
	return HeaderResult{HeaderRow: -1, Columns: ColumnMap{}}
}

func (r *HeaderResolver) keywordHits(cells []string) int {
	hits := 0
	for _, c := range cells {
		if c == "" {
			continue
		}
		for _, k := range r.keywords {
			if strings.Contains(c, k) {
				hits++
				break
			}
		}
	}
	return hits
}

// mapColumns: первое совпадение в объявленном порядке синонимов, колонки слева направо.
func (r *HeaderResolver) mapColumns(cells []string) ColumnMap {
	columns := ColumnMap{}
	claimed := make(map[int]bool, len(cells))
	for _, fs := range r.profile {
		columns[fs.Field] = -1
	synonyms:
		for _, syn := range fs.Synonyms {
			for idx, c := range cells {
				if c == "" || claimed[idx] {
					continue
				}
				if strings.Contains(c, syn) {
					columns[fs.Field] = idx
					claimed[idx] = true
					break synonyms
				}
			}
		}
	}
	return columns
}

// normalizeHeader: нижний регистр, знаки препинания -> пробел, схлопывание пробелов.
func normalizeHeader(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
