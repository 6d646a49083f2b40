package taxonomy

import (
	"sort"

	"github.com/gosimple/slug"
)

// Disease is the display and treatment metadata for one class.
type Disease struct {
	Name         string `json:"name"`
	LocalName    string `json:"local_name"`
	Description  string `json:"description"`
	Treatment    string `json:"treatment"`
	Slug         string `json:"slug"`
	ImageURL     string `json:"image_url"`
	ExternalLink string `json:"external_link"`
}

const clemsonFactsheet = "https://hgic.clemson.edu/factsheet/tomato-diseases-disorders/"

var diseases = []Disease{
	{
		Name:         "Tomato Early blight",
		LocalName:    "Hawar Daun",
		Description:  "Caused by the fungus Alternaria linariae. Small brown spots appear first on older leaves and grow into concentric bullseye rings surrounded by yellow tissue. Stem lesions may girdle the plant near the soil line and fruit lesions can cover most of the fruit.",
		Treatment:    "Use resistant varieties and pathogen-free seed, rotate crops, remove weeds and volunteer tomatoes, mulch, avoid wetting foliage and prune infected lower leaves. Keep potassium and calcium levels adequate. Mancozeb, chlorothalonil or copper fungicides can be used when needed.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Early+Blight",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Bacterial spot",
		LocalName:    "Bercak Bakteri",
		Description:  "Caused by Xanthomonas species, mainly X. perforans, and favoured by rainy weather. Small angular water-soaked leaf spots with yellow halos and raised scabby fruit spots lead to defoliation and sunscald.",
		Treatment:    "Plant certified disease-free seed and transplants, avoid fields that grew tomato or pepper last season, use drip or furrow irrigation, remove infected material and prune for airflow. Copper sprays give fair control.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Bacterial+Spot",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Late blight",
		LocalName:    "Busuk Daun",
		Description:  "Caused by the water mould Phytophthora infestans in cool wet weather. Dark water-soaked lesions enlarge quickly with white growth on leaf undersides; total defoliation can occur within 14 days. Fruit develops greasy olive-dark patches.",
		Treatment:    "Keep foliage dry, space plants widely, avoid evening overhead watering and destroy volunteer tomatoes, potatoes and nightshade weeds. Remove infected plants. Chlorothalonil, copper or mancozeb fungicides help; prefer resistant varieties.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Late+Blight",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Leaf Mold",
		LocalName:    "Jamur Daun",
		Description:  "Caused by Passalora fulva where air circulation is poor and humidity high. Pale green to yellow spots on upper leaf surfaces are matched by grey velvety spore growth underneath; severe infections kill leaves.",
		Treatment:    "Clear crop residue, stake and prune to improve airflow, widen spacing, avoid wetting leaves and rotate crops. Preventive chlorothalonil, mancozeb or copper sprays control the disease.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Leaf+Mold",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Septoria Leaf Spot",
		LocalName:    "Bercak Daun Septoria",
		Description:  "Caused by Septoria lycopersici, usually on lower leaves after flowering. Many small round spots with dark margins and tan centres carry black spore bodies; heavily spotted leaves yellow and drop.",
		Treatment:    "Rotate crops for three years, remove crop debris and avoid overhead irrigation. Repeated chlorothalonil, copper or mancozeb applications control the disease.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Septoria+Leaf+Spot",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Spider Mites",
		LocalName:    "Tungau Laba-laba",
		Description:  "The two-spotted spider mite attacks tomato, eggplant, potato and vine crops. It can complete up to 20 generations a year and thrives with excess nitrogen and hot dusty conditions; outbreaks often follow broad-spectrum insecticide use.",
		Treatment:    "Avoid weedy fields and early broad-spectrum insecticides, do not over-fertilise and use overhead irrigation to suppress mites. Selective miticides such as bifenazate or abamectin, or insecticidal soap and neem oil, applied twice 5-7 days apart.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Spider+Mites",
		ExternalLink: "https://www.umass.edu/agriculture-food-environment/vegetable/fact-sheets/two-spotted-spider-mite",
	},
	{
		Name:         "Tomato Target Spot",
		LocalName:    "Bercak / Bintik Target",
		Description:  "Caused by Corynespora cassiicola in tropical and subtropical fields. It reduces photosynthetic area and marks fruit, and the pathogen survives on debris and more than 500 host species.",
		Treatment:    "Improve airflow, avoid excess fertiliser, prune, manage weeds and rotate crops. Regular chlorothalonil, mancozeb, copper oxychloride, azoxystrobin, pyraclostrobin or boscalid sprays give good control.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Target+Spot",
		ExternalLink: "https://www.vegetables.bayer.com/ca/en-ca/resources/agronomic-spotlights/target-spot-of-tomato.html",
	},
	{
		Name:         "Tomato Mosaic Virus",
		LocalName:    "Virus Mosaik",
		Description:  "ToMV is a TMV strain that enters through microscopic wounds and survives up to two years in plant debris. It rarely kills the plant but strongly reduces fruit quality and yield.",
		Treatment:    "There is no cure. Sterilise tools and surfaces, remove infected plants and contaminated soil, rotate with non-hosts, plant varieties carrying Tm-1, Tm-2 or Tm-2² and reduce weeds.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Mosaic+Virus",
		ExternalLink: "https://content.ces.ncsu.edu/tobamoviruses-that-affect-tomato-tmv-tomv-tobrfv",
	},
	{
		Name:         "Tomato Yellow Leaf Curl Virus",
		LocalName:    "Virus Keriting Daun Kuning",
		Description:  "TYLCV is spread by whiteflies, not seed. Symptoms appear 2-3 weeks after infection: upward curling leaves with yellow margins, small leaves, stunting and flower drop. Early infection may prevent fruit set.",
		Treatment:    "Rogue early symptomatic plants, control weeds, use reflective mulch and light horticultural or canola oil sprays to repel whiteflies, destroy susceptible plants at season end and grow resistant varieties.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Yellow+Leaf+Curl",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Fusarium",
		LocalName:    "Layu Fusarium",
		Description:  "Caused by the soil-borne fungus Fusarium oxysporum in warm weather. Lower leaves yellow and wilt, often on one side of the stem first, and cut stems show dark brown vascular tissue.",
		Treatment:    "Plant in pathogen-free soil with disease-free transplants and varieties resistant to races 1 and 2 (marked FF). Raise soil pH to 6.5-7.0 and use nitrate nitrogen. No chemical control is available.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Fusarium+Wilt",
		ExternalLink: clemsonFactsheet,
	},
	{
		Name:         "Tomato Healthy",
		LocalName:    "Tomat Sehat",
		Description:  "A healthy tomato plant shows bright green leaves, sturdy stems and vigorous growth with no sign of disease or pests.",
		Treatment:    "Keep good practice: regular watering, balanced fertiliser, enough light, preventive pest control and pruning for airflow.",
		ImageURL:     "https://via.placeholder.com/400x200?text=Healthy+Tomato",
		ExternalLink: "#",
	},
}

// KnowledgeBase indexes disease metadata by display name and slug.
type KnowledgeBase struct {
	byName map[string]Disease
	bySlug map[string]Disease
}

func NewKnowledgeBase(entries []Disease) *KnowledgeBase {
	kb := &KnowledgeBase{
		byName: make(map[string]Disease, len(entries)),
		bySlug: make(map[string]Disease, len(entries)),
	}
	for _, d := range entries {
		if d.Slug == "" {
			d.Slug = slug.Make(d.Name)
		}
		kb.byName[d.Name] = d
		kb.bySlug[d.Slug] = d
	}
	return kb
}

// DefaultKnowledgeBase returns the built-in tomato disease entries.
func DefaultKnowledgeBase() *KnowledgeBase {
	return NewKnowledgeBase(diseases)
}

func (kb *KnowledgeBase) ByName(name string) (Disease, bool) {
	d, ok := kb.byName[name]
	return d, ok
}

func (kb *KnowledgeBase) BySlug(s string) (Disease, bool) {
	d, ok := kb.bySlug[s]
	return d, ok
}

// All returns every entry sorted by name.
func (kb *KnowledgeBase) All() []Disease {
	out := make([]Disease, 0, len(kb.byName))
	for _, d := range kb.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
