package exam

import "github.com/stemsi/exstem-client/internal/model"

// buildQueue orders question ids for presentation: unanswered questions
// first, then answered ones, each group in fetch order.
func buildQueue(qs []model.Question, answered map[int]model.Option) []int {
	queue := make([]int, 0, len(qs))
	for _, q := range qs {
		if _, ok := answered[q.ID]; !ok {
			queue = append(queue, q.ID)
		}
	}
	for _, q := range qs {
		if _, ok := answered[q.ID]; ok {
			queue = append(queue, q.ID)
		}
	}
	return queue
}

// nextIndex returns the nearest position after cur holding an unanswered
// question. With none ahead it moves one step, clamped to the last position.
func nextIndex(queue []int, cur int, answered map[int]model.Option) int {
	for i := cur + 1; i < len(queue); i++ {
		if _, ok := answered[queue[i]]; !ok {
			return i
		}
	}
	if cur+1 < len(queue) {
		return cur + 1
	}
	if len(queue) == 0 {
		return 0
	}
	return len(queue) - 1
}

// prevIndex steps back one position, floored at zero.
func prevIndex(cur int) int {
	if cur <= 0 {
		return 0
	}
	return cur - 1
}

// skipAt moves the id at cur to the end of the queue and returns the new
// queue with the position of its first unanswered entry, or 0.
func skipAt(queue []int, cur int, answered map[int]model.Option) ([]int, int) {
	if cur < 0 || cur >= len(queue) {
		return queue, firstUnanswered(queue, answered)
	}
	out := make([]int, 0, len(queue))
	out = append(out, queue[:cur]...)
	out = append(out, queue[cur+1:]...)
	out = append(out, queue[cur])
	return out, firstUnanswered(out, answered)
}

func firstUnanswered(queue []int, answered map[int]model.Option) int {
	for i, id := range queue {
		if _, ok := answered[id]; !ok {
			return i
		}
	}
	return 0
}
