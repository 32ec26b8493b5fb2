package brokerexport

import "time"

// Group is the messages of one topic, in export order.
type Group struct {
	Topic    string
	Messages []Message
}

// Partition keeps the messages whose time lies in the closed window
// [from, to] and groups them by topic. Groups are ordered by the first
// appearance of their topic; messages without a topic are skipped.
func Partition(msgs []Message, from, to time.Time) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, m := range msgs {
		if m.Topic == "" || m.Time.Before(from) || m.Time.After(to) {
			continue
		}
		i, ok := index[m.Topic]
		if !ok {
			i = len(groups)
			index[m.Topic] = i
			groups = append(groups, Group{Topic: m.Topic})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}
