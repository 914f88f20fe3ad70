package app

import (
	"math"
	"sort"
	"strconv"

	"quizhost-service/internal/domain"
)

// Scoring is pure: every function here derives results from a question
// snapshot plus the frozen submissions, with no session state involved.

// isCorrect reports whether the submitted id set is exactly the set of
// correct answer ids. No partial credit, no credit with extra selections.
func isCorrect(q domain.Question, sub domain.Submission) bool {
	correct := make(map[int]struct{})
	for _, a := range q.Answers {
		if a.Correct {
			correct[a.ID] = struct{}{}
		}
	}
	if len(sub.AnswerIDs) != len(correct) {
		return false
	}
	for _, id := range sub.AnswerIDs {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

// correctInOrder returns the ids of players who answered correctly, ordered
// by answer time with arrival order breaking ties.
func correctInOrder(q domain.Question, subs map[string]domain.Submission) []string {
	ids := make([]string, 0, len(subs))
	for playerID, sub := range subs {
		if isCorrect(q, sub) {
			ids = append(ids, playerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := subs[ids[i]], subs[ids[j]]
		if a.AnsweredAt != b.AnsweredAt {
			return a.AnsweredAt < b.AnsweredAt
		}
		return a.Seq < b.Seq
	})
	return ids
}

// questionScores assigns points/rank to each correct answerer, rounded to one
// decimal place. Everyone else scores zero for the question.
func questionScores(q domain.Question, subs map[string]domain.Submission) map[string]float64 {
	points := q.Points
	if points == 0 {
		points = 1
	}
	scores := make(map[string]float64)
	for rank, playerID := range correctInOrder(q, subs) {
		scores[playerID] = math.Round(float64(points)/float64(rank+1)*10) / 10
	}
	return scores
}

func questionResult(q domain.Question, players []domain.Player, subs map[string]domain.Submission) domain.QuestionResult {
	nameOf := make(map[string]string, len(players))
	for _, p := range players {
		nameOf[p.ID] = p.Name
	}

	correctIDs := correctInOrder(q, subs)
	names := make([]string, len(correctIDs))
	for i, id := range correctIDs {
		names[i] = nameOf[id]
	}

	percent := 0
	if len(players) > 0 {
		percent = int(math.Round(100 * float64(len(correctIDs)) / float64(len(players))))
	}

	avg := 0
	if len(subs) > 0 {
		total := 0.0
		for _, sub := range subs {
			total += sub.AnsweredAt
		}
		avg = int(math.Round(total / float64(len(subs))))
	}

	return domain.QuestionResult{
		QuestionID:         q.ID,
		PlayersCorrectList: names,
		AverageAnswerTime:  avg,
		PercentCorrect:     percent,
	}
}

func finalResults(quiz domain.Quiz, players []domain.Player, all map[int]map[string]domain.Submission) domain.FinalResults {
	totals := make(map[string]float64, len(players))
	for _, p := range players {
		totals[p.ID] = 0
	}

	results := make([]domain.QuestionResult, len(quiz.Questions))
	for i, q := range quiz.Questions {
		subs := all[i+1]
		results[i] = questionResult(q, players, subs)
		for playerID, score := range questionScores(q, subs) {
			totals[playerID] += score
		}
	}

	ranked := make([]domain.RankedPlayer, len(players))
	for i, p := range players {
		ranked[i] = domain.RankedPlayer{Name: p.Name, Score: totals[p.ID]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return domain.FinalResults{
		UsersRankedByScore: ranked,
		QuestionResults:    results,
	}
}

// resultsRecords lays out the per-player score and rank grid that the CSV
// export collaborator renders. Rows are sorted by player name; players with
// no correct answer get score 0 and rank 0 for that question.
func resultsRecords(quiz domain.Quiz, players []domain.Player, all map[int]map[string]domain.Submission) [][]string {
	header := []string{"Player"}
	for i := range quiz.Questions {
		n := strconv.Itoa(i + 1)
		header = append(header, "question"+n+"score", "question"+n+"rank")
	}

	type playerColumns struct {
		name string
		id   string
	}
	rows := make([]playerColumns, len(players))
	for i, p := range players {
		rows[i] = playerColumns{name: p.Name, id: p.ID}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	scoresPerQuestion := make([]map[string]float64, len(quiz.Questions))
	ranksPerQuestion := make([]map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		subs := all[i+1]
		scoresPerQuestion[i] = questionScores(q, subs)
		ranksPerQuestion[i] = make(map[string]int)
		for rank, playerID := range correctInOrder(q, subs) {
			ranksPerQuestion[i][playerID] = rank + 1
		}
	}

	records := [][]string{header}
	for _, row := range rows {
		record := []string{row.name}
		for i := range quiz.Questions {
			score := scoresPerQuestion[i][row.id]
			rank := ranksPerQuestion[i][row.id]
			record = append(record,
				strconv.FormatFloat(score, 'f', -1, 64),
				strconv.Itoa(rank),
			)
		}
		records = append(records, record)
	}
	return records
}
