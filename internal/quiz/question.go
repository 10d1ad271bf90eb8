package quiz

// Difficulty levels accepted from the model.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const (
	// QuestionCount is the number of questions requested per quiz.
	QuestionCount = 8
	// OptionCount is the number of answer options every question carries.
	OptionCount = 4
	// DefaultPoints is used when the model omits a point value.
	DefaultPoints = 10

	minQuestionLen = 10 // question text must be longer than this
)

// Question is one validated multiple-choice question.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"` // zero-based, always within [0,3]
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty"`
	Points      int      `json:"points"`
	Position    int      `json:"position,omitempty"` // 1-based once stored
}
