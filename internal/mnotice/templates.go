package mnotice

import (
	"fmt"
	"strings"
	"time"

	"kyri56xcaesar/taskhub/internal/models"
)

// DueDateLayout renders dates the way the notices have always shown them ("Thu Feb 01 2024").
const DueDateLayout = "Mon Jan 02 2006"

// TaskAssigned is sent to the whole team when a task is created or duplicated.
// The "set a {priority} priority" wording is kept as users know it.
func TaskAssigned(team []string, priority models.Priority, due time.Time, taskID string) models.Notice {
	var b strings.Builder
	b.WriteString("New task has been assigned to you")
	if len(team) > 1 {
		fmt.Fprintf(&b, " and %d others", len(team)-1)
	}
	fmt.Fprintf(&b, ". The task priority is set a %s priority, so check and act accordingly. The task date is %s. Thank you!!!",
		priority, due.Format(DueDateLayout))

	return models.Notice{
		Team:   append([]string(nil), team...),
		Text:   b.String(),
		TaskID: taskID,
	}
}

func AddedToTask(userID, title, taskID string) models.Notice {
	return models.Notice{
		Team:   []string{userID},
		Text:   "You have been added to the task: " + title,
		TaskID: taskID,
	}
}

func RemovedFromTask(userID, title, taskID string) models.Notice {
	return models.Notice{
		Team:   []string{userID},
		Text:   "You have been removed from the task: " + title,
		TaskID: taskID,
	}
}
