package eval

import "testing"

func TestEval_ComparisonsAndLogic(t *testing.T) {
	state := map[string]any{
		"rows":  4.0,
		"nulls": 1.0,
	}

	ok, err := Eval(`rows > 0 && nulls <= 1`, state)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}

func TestEval_DotAccessOnNestedState(t *testing.T) {
	state := map[string]any{
		"anomalies": map[string]any{"count": 0.0},
	}

	ok, err := Eval(`anomalies.count == 0`, state)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}

func TestEval_NonBoolResultFails(t *testing.T) {
	_, err := Eval(`nulls`, map[string]any{"nulls": 1.0})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_BlocksArithmetic(t *testing.T) {
	_, err := Eval(`x+1==2`, map[string]any{"x": 1})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_BlocksFunctionCall(t *testing.T) {
	_, err := Eval(`len(x)==1`, map[string]any{"x": 1})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_AllowsParentheses(t *testing.T) {
	state := map[string]any{"a": true, "b": false, "c": true}

	ok, err := Eval(`a && (b || c)`, state)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}
