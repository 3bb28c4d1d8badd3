package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnswer(t *testing.T) {
	mc := Question{
		ID:            "q1",
		Kind:          QuestionMultipleChoice,
		Options:       []string{"Paris", "London", "Madrid"},
		CorrectAnswer: "Paris",
	}
	tf := Question{
		ID:            "q2",
		Kind:          QuestionTrueFalse,
		CorrectAnswer: "true",
	}

	t.Run("multiple choice exact match", func(t *testing.T) {
		assert.True(t, ValidateAnswer(mc, "Paris"))
		assert.False(t, ValidateAnswer(mc, "London"))
		// Option labels are compared verbatim.
		assert.False(t, ValidateAnswer(mc, "paris"))
	})

	t.Run("true false is case and whitespace insensitive", func(t *testing.T) {
		assert.True(t, ValidateAnswer(tf, "true"))
		assert.True(t, ValidateAnswer(tf, "True"))
		assert.True(t, ValidateAnswer(tf, " TRUE "))
		assert.False(t, ValidateAnswer(tf, "false"))
	})

	t.Run("unknown kind never validates", func(t *testing.T) {
		q := Question{Kind: QuestionKind("essay"), CorrectAnswer: "anything"}
		assert.False(t, ValidateAnswer(q, "anything"))
	})
}
