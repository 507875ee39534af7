package bundle

import "context"

// SumInput and SumOutput are the fixture (context.Context, In) (Out, error)
// pair packager_test.go and idgen_test.go capture and package, matching
// pkg/dispatch's Wrap[In, Out] calling convention.
type SumInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

type SumOutput struct {
	Total int `json:"total"`
}

// sumHelper is called by sumFixture below, so it should surface as a
// local callee in the dependency report.
func sumHelper(a, b int) int {
	return a + b
}

// sumFixture is the packaging target exercised by this package's tests.
func sumFixture(ctx context.Context, in SumInput) (SumOutput, error) {
	return SumOutput{Total: sumHelper(in.A, in.B)}, nil
}
