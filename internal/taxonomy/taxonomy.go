// Package taxonomy holds the fixed disease class layout shared by every
// disease classifier, plus the static knowledge base shown next to results.
package taxonomy

import "strings"

// Classes is positional: index i of every classifier output refers to Classes[i].
var Classes = []string{
	"Tomato_Bacterial_spot",
	"Tomato_Early_blight",
	"Tomato_Fusarium",
	"Tomato_Healthy",
	"Tomato_Late_blight",
	"Tomato_Leaf_Mold",
	"Tomato_Mosaic_Virus",
	"Tomato_Septoria_Leaf_Spot",
	"Tomato_Spider_Mites",
	"Tomato_Target_Spot",
	"Tomato_Yellow_Leaf_Curl_Virus",
}

// Taxonomy maps class indices to display names.
type Taxonomy struct {
	ids   []string
	names []string
}

// New builds a taxonomy over ids. Display names replace underscores with spaces.
func New(ids []string) *Taxonomy {
	t := &Taxonomy{
		ids:   append([]string(nil), ids...),
		names: make([]string, len(ids)),
	}
	for i, id := range ids {
		t.names[i] = strings.ReplaceAll(id, "_", " ")
	}
	return t
}

// Default returns the tomato disease taxonomy.
func Default() *Taxonomy {
	return New(Classes)
}

func (t *Taxonomy) Len() int { return len(t.ids) }

// Name returns the display name for index i, or "" when out of range.
func (t *Taxonomy) Name(i int) string {
	if i < 0 || i >= len(t.names) {
		return ""
	}
	return t.names[i]
}

func (t *Taxonomy) Names() []string {
	return append([]string(nil), t.names...)
}
