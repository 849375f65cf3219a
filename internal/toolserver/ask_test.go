package toolserver

import "testing"

func TestQuestionAnswerStyle_ToSearchSize(t *testing.T) {
	cases := map[QuestionAnswerStyle]int{
		StyleConcise:       1,
		StyleNormal:        3,
		StyleComprehensive: 6,
		StyleExhaustive:    9,
		"unknown":          3,
	}
	for style, want := range cases {
		if got := style.ToSearchSize(); got != want {
			t.Errorf("%s.ToSearchSize() = %d, want %d", style, got, want)
		}
	}
}
