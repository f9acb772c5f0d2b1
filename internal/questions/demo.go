package questions

// DemoPool is a small built-in question set so the server can run without a
// database. Tests use it too.
func DemoPool() []Question {
	return []Question{
		{ID: "q-rem-1", Text: "What is the capital of France?", Choices: []string{"Lyon", "Paris", "Marseille", "Nice"}, Answer: 1, Level: LevelRemembering},
		{ID: "q-rem-2", Text: "How many sides does a hexagon have?", Choices: []string{"5", "6", "7", "8"}, Answer: 1, Level: LevelRemembering},
		{ID: "q-rem-3", Text: "What planet is known as the Red Planet?", Choices: []string{"Venus", "Jupiter", "Mars", "Saturn"}, Answer: 2, Level: LevelRemembering},
		{ID: "q-und-1", Text: "Why does ice float on water?", Choices: []string{"It is colder", "It is less dense", "It is purer", "Surface tension"}, Answer: 1, Level: LevelUnderstanding},
		{ID: "q-und-2", Text: "What does photosynthesis produce besides glucose?", Choices: []string{"Nitrogen", "Carbon dioxide", "Oxygen", "Methane"}, Answer: 2, Level: LevelUnderstanding},
		{ID: "q-app-1", Text: "A train travels 120 km in 2 hours. What is its average speed?", Choices: []string{"50 km/h", "60 km/h", "70 km/h", "80 km/h"}, Answer: 1, Level: LevelApplying},
		{ID: "q-app-2", Text: "If x + 7 = 15, what is x?", Choices: []string{"6", "7", "8", "9"}, Answer: 2, Level: LevelApplying},
		{ID: "q-ana-1", Text: "Which conclusion follows: all A are B, no B are C?", Choices: []string{"Some A are C", "No A are C", "All C are A", "Cannot tell"}, Answer: 1, Level: LevelAnalyzing},
		{ID: "q-ana-2", Text: "Which factor most directly causes seasons on Earth?", Choices: []string{"Distance from the sun", "Axial tilt", "Lunar phase", "Solar flares"}, Answer: 1, Level: LevelAnalyzing},
		{ID: "q-eva-1", Text: "Which argument is strongest for renewable energy adoption?", Choices: []string{"It is fashionable", "Finite fuels deplete and emit", "Oil is heavy", "Turbines are tall"}, Answer: 1, Level: LevelEvaluating},
		{ID: "q-eva-2", Text: "Which source is most credible for medical dosage data?", Choices: []string{"A forum post", "Peer-reviewed trial", "An advertisement", "A memoir"}, Answer: 1, Level: LevelEvaluating},
		{ID: "q-cre-1", Text: "Which design best combines a lever and a pulley to lift with least force?", Choices: []string{"Lever only", "Pulley only", "Compound of both", "Neither"}, Answer: 2, Level: LevelCreating},
	}
}
