package concentrationdto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type StringMessage struct {
	Message string `json:"message"`
}

type GameForm struct {
	URLSafeKey         string `json:"urlsafe_key"`
	UserName           string `json:"user_name"`
	SuccessfulAttempts int    `json:"successful_attempts"`
	FailedAttempts     int    `json:"failed_attempts"`
	TotalAttempts      int    `json:"total_attempts"`
	GameOver           bool   `json:"game_over"`
	Message            string `json:"message"`
}

type GameForms struct {
	Items []GameForm `json:"items"`
}

type ScoreForm struct {
	UserName           string `json:"user_name"`
	Date               string `json:"date"`
	Won                bool   `json:"won"`
	SuccessfulAttempts int    `json:"successful_attempts"`
	FailedAttempts     int    `json:"failed_attempts"`
	TotalAttempts      int    `json:"total_attempts"`
}

type ScoreForms struct {
	Items []ScoreForm `json:"items"`
}

type RecordForm struct {
	UserName string `json:"user_name"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"loses"`
}

type RecordForms struct {
	Items []RecordForm `json:"items"`
}

type UserRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email,omitempty"`
}

type NewGameRequest struct {
	UserName string `json:"user_name"`
}

// Choice is a raw card index as sent by the client. Numbers and strings are both accepted;
// validation happens in the move evaluator.
type Choice string

func (c *Choice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Choice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("choice must be a number or string: %w", err)
	}
	*c = Choice(n.String())
	return nil
}

type MakeMoveRequest struct {
	FirstChoice  Choice `json:"first_choice"`
	SecondChoice Choice `json:"second_choice"`
}
