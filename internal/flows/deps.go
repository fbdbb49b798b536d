package flows

// Deps groups flow dependency sets. The Guard builds this once and delegates
// to the matching flow.
type Deps struct {
	Evaluate EvaluateDeps
	Revoke   RevokeDeps
}
