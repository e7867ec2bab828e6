package domain

// IDField is the implicit identifier field every template starts with. It
// holds the card id and is never part of Template.Fields.
const IDField = "id"

// Template is the fixed note type shared by all notes of a deck.
type Template struct {
	ID     int64
	Name   string
	Fields []string // declared fields, without IDField
	Front  string
	Back   string
	CSS    string
}

// BaseTemplate is the question/answer template used for every export.
var BaseTemplate = Template{
	ID:     148814881488,
	Name:   "Base model for knoldeck",
	Fields: []string{"question", "answer"},
	Front:  "{{question}}",
	Back:   `{{FrontSide}}<hr id="answer">{{answer}}`,
	CSS: `.card {
 font-family: arial;
 font-size: 20px;
 text-align: center;
}
`,
}

// AllFields returns the template fields in storage order, IDField first.
func (t *Template) AllFields() []string {
	all := make([]string, 0, len(t.Fields)+1)
	all = append(all, IDField)
	return append(all, t.Fields...)
}

// LinesPerCard is the number of card lines one card occupies in an input
// file: the seed line plus one line per declared field.
func (t *Template) LinesPerCard() int {
	return len(t.Fields) + 1
}
