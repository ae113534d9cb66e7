package game

// turnQueue is the ordered set of active participant ids for one room.
// The head is the current turn holder. Mutations preserve the relative
// order of untouched entries; new joiners go to the tail.
type turnQueue struct {
	ids []string
}

func (q *turnQueue) head() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	return q.ids[0], true
}

func (q *turnQueue) len() int {
	return len(q.ids)
}

func (q *turnQueue) contains(id string) bool {
	for _, v := range q.ids {
		if v == id {
			return true
		}
	}
	return false
}

// push appends id at the tail. A duplicate id is a no-op so a re-join
// retried against an already-queued participant cannot double-book a turn.
func (q *turnQueue) push(id string) {
	if q.contains(id) {
		return
	}
	q.ids = append(q.ids, id)
}

func (q *turnQueue) remove(id string) {
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

// rotate moves the head to the tail so the next participant becomes the
// turn holder.
func (q *turnQueue) rotate() {
	if len(q.ids) < 2 {
		return
	}
	head := q.ids[0]
	copy(q.ids, q.ids[1:])
	q.ids[len(q.ids)-1] = head
}

func (q *turnQueue) snapshot() []string {
	out := make([]string, len(q.ids))
	copy(out, q.ids)
	return out
}
