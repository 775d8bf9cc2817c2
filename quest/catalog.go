// Package quest holds the static quest catalog and its validation rules.
package quest

import (
	"sort"

	"github.com/wfunc/gardien/geo"
)

// Key identifiers granted by quests.
const (
	KeyWater = "KEY_WATER"
	KeyTime  = "KEY_TIME"
	KeyAir   = "KEY_AIR"
	KeyFire  = "KEY_FIRE"
)

// ElementalKeys are the keys the finale requires, in display order.
var ElementalKeys = []string{KeyWater, KeyTime, KeyAir, KeyFire}

const (
	// EntryID is the narrative quest unlocked by starting the game.
	EntryID = 0
	// FinaleID is the union quest gated on population-wide keys.
	FinaleID = 6
)

// Icon is the inventory icon category.
type Icon string

const (
	IconWater Icon = "water"
	IconFire  Icon = "fire"
	IconAir   Icon = "air"
	IconTime  Icon = "time"
)

// KeyInfo describes an inventory key.
type KeyInfo struct {
	Icon        Icon
	Description string
}

// KeyDescriptions maps reward keys to their inventory presentation.
var KeyDescriptions = map[string]KeyInfo{
	KeyWater: {Icon: IconWater, Description: "Purifie l'esprit."},
	KeyTime:  {Icon: IconTime, Description: "Révèle le passé."},
	KeyAir:   {Icon: IconAir, Description: "Ouvre les voies invisibles."},
	KeyFire:  {Icon: IconFire, Description: "Illumine les ténèbres."},
}

// Reward is the key granted when a quest completes.
type Reward struct {
	Key  string
	Name string
}

// Quest is an immutable quest definition.
type Quest struct {
	ID             int
	Title          string
	Location       string
	Description    string
	Rule           Rule
	Reward         *Reward
	Coordinates    *geo.Point
	SuccessMessage string
}

// IsFinale reports whether q is the union quest.
func (q Quest) IsFinale() bool { return q.ID == FinaleID }

// Public is the client-facing view of a quest. Prompts and expected answers
// stay on the server.
type Public struct {
	ID             int            `json:"id"`
	Title          string         `json:"title"`
	Location       string         `json:"location"`
	Description    string         `json:"description"`
	ValidationType ValidationType `json:"validation_type"`
	Choices        []string       `json:"choices,omitempty"`
	RewardKey      string         `json:"reward_key,omitempty"`
	RewardName     string         `json:"reward_name,omitempty"`
	Coordinates    *geo.Point     `json:"coordinates,omitempty"`
	SuccessMessage string         `json:"success_message,omitempty"`
}

// Public returns the client view of q.
func (q Quest) Public() Public {
	p := Public{
		ID:             q.ID,
		Title:          q.Title,
		Location:       q.Location,
		Description:    q.Description,
		ValidationType: q.Rule.Type(),
		Coordinates:    q.Coordinates,
		SuccessMessage: q.SuccessMessage,
	}
	if a, ok := q.Rule.(AnswerProof); ok {
		p.Choices = a.Choices
	}
	if q.Reward != nil {
		p.RewardKey = q.Reward.Key
		p.RewardName = q.Reward.Name
	}
	return p
}

// Catalog is an ordered, read-only set of quests.
type Catalog struct {
	quests []Quest
	index  map[int]int
}

// NewCatalog builds a catalog ordered by quest id. Duplicate ids keep the
// first definition.
func NewCatalog(quests []Quest) *Catalog {
	sorted := make([]Quest, 0, len(quests))
	index := make(map[int]int, len(quests))
	for _, q := range quests {
		if _, dup := index[q.ID]; dup {
			continue
		}
		index[q.ID] = -1
		sorted = append(sorted, q)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, q := range sorted {
		index[q.ID] = i
	}
	return &Catalog{quests: sorted, index: index}
}

// Get returns the quest with id.
func (c *Catalog) Get(id int) (Quest, bool) {
	i, ok := c.index[id]
	if !ok {
		return Quest{}, false
	}
	return c.quests[i], true
}

// All returns every quest in id order.
func (c *Catalog) All() []Quest {
	out := make([]Quest, len(c.quests))
	copy(out, c.quests)
	return out
}

// Waypoints returns the located quests for proximity ranking.
func (c *Catalog) Waypoints() []geo.Waypoint {
	var out []geo.Waypoint
	for _, q := range c.quests {
		if q.Coordinates != nil {
			out = append(out, geo.Waypoint{ID: q.ID, Location: *q.Coordinates})
		}
	}
	return out
}

// RewardFor returns the reward of quest id, if any.
func (c *Catalog) RewardFor(id int) *Reward {
	q, ok := c.Get(id)
	if !ok {
		return nil
	}
	return q.Reward
}

// Default returns the Paris hunt.
func Default() *Catalog {
	return NewCatalog([]Quest{
		{
			ID:             EntryID,
			Title:          "L'Appel",
			Location:       "QG des Gardiens",
			Description:    "Paris. La ville du fer… et du feu. On dit qu’au cœur de ses pavés sommeille une lumière ancienne. Réveille-toi, Gardien.",
			Rule:           NoProof{},
			SuccessMessage: "La quête commence.",
			Coordinates:    &geo.Point{Lat: 48.8566, Lng: 2.3522},
		},
		{
			ID:             1,
			Title:          "L'Éveil",
			Location:       "19 Rue Voltaire",
			Description:    "La mission commence là où Voltaire est né. Trouve la preuve que 'la nature reprend toujours ses droits'. Prends en photo une plante qui pousse dans un mur ou de la pierre.",
			Rule:           ImageProof{Prompt: "Vérifie si une plante pousse directement d'une structure urbaine (mur, pavés). Si oui, félicite le joueur. Sinon, explique ce que tu vois (ex: plante en pot, arbre normal) et pourquoi ça ne valide pas."},
			SuccessMessage: "Analyse visuelle confirmée. La nature survit.",
			Coordinates:    &geo.Point{Lat: 48.8529, Lng: 2.3789},
		},
		{
			ID:             2,
			Title:          "La Clé de l'Eau",
			Location:       "Pont-Neuf",
			Description:    "Parmi les 384 mascarons du pont, un seul ne pleure ni ne rit : il souffle. Trouve ce visage de pierre et capture son souffle éternel en photo.",
			Rule:           ImageProof{Prompt: "Identifie le Pont-Neuf ou l'un de ses mascarons (visages de pierre). Si l'image est floue ou montre un autre pont, explique-le au joueur avec bienveillance."},
			Reward:         &Reward{Key: KeyWater, Name: "Clé de l'Eau"},
			SuccessMessage: "L'eau murmure ton nom.",
			Coordinates:    &geo.Point{Lat: 48.8570, Lng: 2.3413},
		},
		{
			ID:             3,
			Title:          "La Clé du Temps",
			Location:       "Panthéon",
			Description:    "Ici reposent les grands Hommes. Marie Curie y détient le secret du temps. Prends en photo la façade majestueuse du Panthéon ou un hommage à Marie Curie à proximité.",
			Rule:           ImageProof{Prompt: "Vérifie si l'image montre le Panthéon de Paris. Si tu vois un autre monument ou juste une rue, indique précisément ce que tu reconnais pour aider le joueur."},
			Reward:         &Reward{Key: KeyTime, Name: "Clé du Temps"},
			SuccessMessage: "Le temps se plie à ta volonté.",
			Coordinates:    &geo.Point{Lat: 48.8462, Lng: 2.3464},
		},
		{
			ID:             4,
			Title:          "La Clé de l'Air",
			Location:       "Champ de Mars",
			Description:    "Au pied de la Dame de Fer, un monument célèbre la Paix. Capture le Mur pour la Paix ou la structure de la Tour Eiffel pour libérer le souffle de l'air.",
			Rule:           ImageProof{Prompt: "Vérifie la présence de la Tour Eiffel ou du Mur pour la Paix. Si l'angle est mauvais ou le monument trop loin, donne un conseil pour une meilleure photo."},
			Reward:         &Reward{Key: KeyAir, Name: "Clé de l'Air"},
			SuccessMessage: "Tu marches désormais sur les nuages.",
			Coordinates:    &geo.Point{Lat: 48.8556, Lng: 2.2986},
		},
		{
			ID:             5,
			Title:          "La Clé de Feu",
			Location:       "Place Vendôme",
			Description:    "La colonne Vendôme, forgée dans le bronze des canons, brûle d'un feu guerrier. Prends en photo cette colonne triomphale pour obtenir la dernière clé.",
			Rule:           ImageProof{Prompt: "Reconnais la Colonne Vendôme. Si le joueur a pris une autre colonne (ex: Bastille), explique la différence pour le guider."},
			Reward:         &Reward{Key: KeyFire, Name: "Clé de Feu"},
			SuccessMessage: "La flamme sacrée est tienne.",
			Coordinates:    &geo.Point{Lat: 48.8675, Lng: 2.3294},
		},
		{
			ID:             FinaleID,
			Title:          "L'Union",
			Location:       "Arc de Triomphe",
			Description:    "Apporte les 4 clés au cœur de l'étoile. Rends-toi à l'Arc de Triomphe pour l'ultime éveil.",
			Rule:           InventoryCheck{RequiredKeys: ElementalKeys},
			SuccessMessage: "Paris brille à nouveau. Tu es devenu un véritable Gardien de la Lumière.",
			Coordinates:    &geo.Point{Lat: 48.8738, Lng: 2.2950},
		},
	})
}
