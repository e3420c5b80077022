// Package scoring computes the result of a finished attempt and the
// weak-topic summary shown with it.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// TopTopics is the number of entries kept per weak-topic tally.
const TopTopics = 3

// UnspecifiedTopic labels questions carrying no topic metadata.
const UnspecifiedTopic = "unspecified"

// Compute scores an attempt. order maps exam position to original question
// index; answers and statuses are keyed by position. The result depends on
// its inputs only, so scoring the same attempt twice yields the same result.
func Compute(exam *model.Exam, order []int, answers map[int]string, statuses map[int]model.Status) model.Result {
	res := model.Result{
		Total:         len(order),
		WrongTopics:   []model.TopicCount{},
		TimeoutTopics: []model.TopicCount{},
	}

	wrong := newTally()
	missed := newTally()

	for pos, idx := range order {
		if idx < 0 || idx >= len(exam.Questions) {
			continue
		}
		q := exam.Questions[idx]

		if selected, ok := answers[pos]; ok {
			if selected == q.CorrectAnswer {
				res.CorrectCount++
				continue
			}
			res.WrongCount++
			wrong.add(TopicLabel(q))
			continue
		}

		switch statuses[pos] {
		case model.StatusSkipped:
			res.SkippedCount++
		case model.StatusTimeout:
			res.TimeoutCount++
		}
		missed.add(TopicLabel(q))
	}

	res.Percentage = Percentage(res.CorrectCount, res.Total)
	res.WrongTopics = wrong.top(TopTopics)
	res.TimeoutTopics = missed.top(TopTopics)
	res.RecommendedTopic = Recommend(res.WrongTopics, res.TimeoutTopics)
	return res
}

// Percentage is round(100 * correct / total), halves rounded away from zero.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// TopicLabel resolves the most specific label a question carries.
func TopicLabel(q model.Question) string {
	for _, label := range []string{q.Topic, q.Lesson, q.Unit, q.Chapter} {
		if l := strings.TrimSpace(label); l != "" {
			return l
		}
	}
	return UnspecifiedTopic
}

// Recommend picks the topic to revise first: the top wrong topic, else the top missed topic.
func Recommend(wrong, missed []model.TopicCount) string {
	if len(wrong) > 0 {
		return wrong[0].Topic
	}
	if len(missed) > 0 {
		return missed[0].Topic
	}
	return ""
}

// tally counts topics and remembers the order in which they first appeared.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(topic string) {
	if _, ok := t.counts[topic]; !ok {
		t.order = append(t.order, topic)
	}
	t.counts[topic]++
}

func (t *tally) top(n int) []model.TopicCount {
	out := make([]model.TopicCount, 0, len(t.order))
	for _, topic := range t.order {
		out = append(out, model.TopicCount{Topic: topic, Count: t.counts[topic]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
