package category

// Id identifies a grocery aisle on the target application.
type Id string

const (
	Produce   Id = "produce"
	Dairy     Id = "dairy"
	Meat      Id = "meat"
	Seafood   Id = "seafood"
	Bakery    Id = "bakery"
	Pantry    Id = "pantry"
	Frozen    Id = "frozen"
	Beverages Id = "beverages"
	Household Id = "household"
	Other     Id = "other"
)

type Category struct {
	Id       Id
	Name     string
	Keywords []string
}

// DefaultTable is the aisle layout of the target application. Keywords are
// lowercase and singular.
var DefaultTable = []Category{
	{
		Id:   Produce,
		Name: "Produce",
		Keywords: []string{
			"apple", "banana", "orange", "lemon", "lime", "grape", "berry", "strawberry",
			"blueberry", "avocado", "tomato", "potato", "onion", "garlic", "carrot",
			"celery", "lettuce", "spinach", "kale", "cucumber", "pepper", "broccoli",
			"cauliflower", "zucchini", "mushroom", "ginger", "cilantro", "parsley",
			"basil", "scallion", "cabbage", "corn", "squash", "pear", "peach", "mango",
		},
	},
	{
		Id:   Dairy,
		Name: "Dairy & Eggs",
		Keywords: []string{
			"milk", "egg", "butter", "cheese", "cheddar", "mozzarella", "parmesan",
			"yogurt", "cream", "sour cream", "cream cheese", "feta",
		},
	},
	{
		Id:   Meat,
		Name: "Meat",
		Keywords: []string{
			"chicken", "beef", "pork", "bacon", "sausage", "turkey", "ham", "lamb",
			"ground beef", "steak", "chorizo",
		},
	},
	{
		Id:   Seafood,
		Name: "Seafood",
		Keywords: []string{
			"salmon", "tuna", "shrimp", "cod", "tilapia", "crab", "scallop", "fish",
		},
	},
	{
		Id:   Bakery,
		Name: "Bakery",
		Keywords: []string{
			"bread", "bagel", "bun", "tortilla", "croissant", "muffin", "baguette", "pita",
		},
	},
	{
		Id:   Pantry,
		Name: "Pantry",
		Keywords: []string{
			"rice", "pasta", "spaghetti", "flour", "sugar", "salt", "oil", "olive oil",
			"vinegar", "bean", "lentil", "oat", "cereal", "tofu", "peanut butter",
			"honey", "soy sauce", "broth", "stock", "canned tomato", "spice", "cumin",
			"paprika", "cinnamon", "noodle", "quinoa", "chickpea", "nut", "almond",
		},
	},
	{
		Id:   Frozen,
		Name: "Frozen",
		Keywords: []string{
			"ice cream", "frozen", "frozen pea", "frozen pizza", "popsicle",
		},
	},
	{
		Id:   Beverages,
		Name: "Beverages",
		Keywords: []string{
			"coffee", "tea", "juice", "soda", "water", "sparkling water", "wine", "beer",
		},
	},
	{
		Id:   Household,
		Name: "Household",
		Keywords: []string{
			"paper towel", "toilet paper", "detergent", "dish soap", "soap", "sponge",
			"trash bag", "foil", "plastic wrap", "napkin",
		},
	},
}

// Name returns the display name of the category, or the id itself when the
// category is not part of the table.
func Name(table []Category, id Id) string {
	for _, c := range table {
		if c.Id == id {
			return c.Name
		}
	}
	if id == Other {
		return "Other"
	}
	return string(id)
}
