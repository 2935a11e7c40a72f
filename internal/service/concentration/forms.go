package concentration

import (
	core "github.com/park285/concentration/internal/concentration"
	"github.com/park285/concentration/pkg/concentrationdto"
)

func toGameForm(g *core.Game, message string) *concentrationdto.GameForm {
	return &concentrationdto.GameForm{
		URLSafeKey:         g.ID,
		UserName:           g.UserName,
		SuccessfulAttempts: g.Successful,
		FailedAttempts:     g.Failed,
		TotalAttempts:      g.Total,
		GameOver:           g.Over,
		Message:            message,
	}
}

func toScoreForms(scores []*core.Score) *concentrationdto.ScoreForms {
	out := &concentrationdto.ScoreForms{Items: make([]concentrationdto.ScoreForm, 0, len(scores))}
	for _, sc := range scores {
		out.Items = append(out.Items, concentrationdto.ScoreForm{
			UserName:           sc.UserName,
			Date:               sc.Date.Format("2006-01-02"),
			Won:                sc.Won,
			SuccessfulAttempts: sc.Successful,
			FailedAttempts:     sc.Failed,
			TotalAttempts:      sc.Total,
		})
	}
	return out
}

func toRecordForm(r *core.Record) concentrationdto.RecordForm {
	return concentrationdto.RecordForm{UserName: r.UserName, Wins: r.Wins, Losses: r.Losses}
}
