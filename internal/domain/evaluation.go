package domain

// RecommendationEvaluation scores how well a recommendation fits an issue.
type RecommendationEvaluation struct {
	Recommendation string  `json:"recommendation"`
	Score          float64 `json:"score"`
	Explanation    string  `json:"explanation"`
}

// RoutingEvaluation is a second opinion on a routing decision.
type RoutingEvaluation struct {
	AssignedTeam  string `json:"assigned_team"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation"`
	SuggestedTeam string `json:"suggested_team,omitempty"`
}
