package game

import (
	"errors"
	"strings"
)

// Choice is a rock-paper-scissors submission. ChoiceAbsent marks a player
// who never answered before the round locked.
type Choice string

const (
	ChoiceRock     Choice = "rock"
	ChoicePaper    Choice = "paper"
	ChoiceScissors Choice = "scissors"
	ChoiceAbsent   Choice = "none"
)

// ErrInvalidChoice is returned for values outside the recognized set.
var ErrInvalidChoice = errors.New("invalid choice")

// ParseChoice validates a client-supplied choice value.
func ParseChoice(s string) (Choice, error) {
	switch Choice(strings.ToLower(s)) {
	case ChoiceRock:
		return ChoiceRock, nil
	case ChoicePaper:
		return ChoicePaper, nil
	case ChoiceScissors:
		return ChoiceScissors, nil
	default:
		return "", ErrInvalidChoice
	}
}

// Outcome of a single round from player 1's perspective.
type Outcome string

const (
	OutcomePlayer1 Outcome = "p1_win"
	OutcomePlayer2 Outcome = "p2_win"
	OutcomeDraw    Outcome = "tie"
)

var beats = map[Choice]Choice{
	ChoiceRock:     ChoiceScissors,
	ChoiceScissors: ChoicePaper,
	ChoicePaper:    ChoiceRock,
}

// Resolve computes the round outcome for the ordered pair of choices.
// It is a pure function of its inputs; absence is a valid input.
func Resolve(p1, p2 Choice) Outcome {
	if p1 == ChoiceAbsent && p2 == ChoiceAbsent {
		return OutcomeDraw
	}
	if p1 == ChoiceAbsent {
		return OutcomePlayer2
	}
	if p2 == ChoiceAbsent {
		return OutcomePlayer1
	}
	if p1 == p2 {
		return OutcomeDraw
	}
	if beats[p1] == p2 {
		return OutcomePlayer1
	}
	return OutcomePlayer2
}
