package models

import (
	"slices"
	"strings"
	"time"
)

type Stage string

const (
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in progress"
	StageCompleted  Stage = "completed"
)

// Stages lists every stage in board order.
var Stages = []Stage{StageTodo, StageInProgress, StageCompleted}

func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Stages, st) {
		return st, true
	}

	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities is ordered from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Priorities, p) {
		return p, true
	}

	return "", false
}

type ActivityType string

const (
	ActivityAssigned   ActivityType = "assigned"
	ActivityStarted    ActivityType = "started"
	ActivityInProgress ActivityType = "in progress"
	ActivityBug        ActivityType = "bug"
	ActivityCompleted  ActivityType = "completed"
	ActivityCommented  ActivityType = "commented"
	ActivityUpdated    ActivityType = "updated"
)

var activityTypes = []ActivityType{
	ActivityAssigned, ActivityStarted, ActivityInProgress, ActivityBug,
	ActivityCompleted, ActivityCommented, ActivityUpdated,
}

func ParseActivityType(s string) (ActivityType, bool) {
	at := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(activityTypes, at) {
		return at, true
	}

	return "", false
}

// Activity is an append-only task log entry.
type Activity struct {
	ID       string       `json:"id"`
	Type     ActivityType `json:"type"`
	Activity string       `json:"activity"`
	By       string       `json:"by"`
	Date     time.Time    `json:"date"`
}

type SubTask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        *time.Time `json:"date,omitempty"`
	Tag         string     `json:"tag"`
	IsCompleted bool       `json:"isCompleted"`
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StartDate   time.Time  `json:"startDate"`
	DueDate     time.Time  `json:"dueDate"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Stage       Stage      `json:"stage"`
	Tags        []string   `json:"tags"`
	Activities  []Activity `json:"activities"`
	SubTasks    []SubTask  `json:"subTasks"`
	Assets      []string   `json:"assets"`
	Team        []string   `json:"team"`
	CreatedBy   string     `json:"createdBy"`
	IsTrashed   bool       `json:"isTrashed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t Task) HasMember(userID string) bool {
	return slices.Contains(t.Team, userID)
}

// TaskPatch carries only the fields a caller supplied.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Stage       *Stage
	StartDate   *time.Time
	DueDate     *time.Time
	Tags        *[]string
	Assets      *[]string
	Team        *[]string

	// Activities and Notices are written in the same transaction as the fields.
	Activities []Activity
	Notices    []*Notice
}

// Empty reports whether no field is set. Activities and Notices alone don't count.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Stage == nil &&
		p.StartDate == nil && p.DueDate == nil && p.Tags == nil && p.Assets == nil && p.Team == nil
}

// TaskFilter selects tasks. Zero values mean "no constraint"; Limit 0 means unlimited.
type TaskFilter struct {
	Member  string
	Trashed *bool
	Stage   Stage
	Search  string
	Offset  int
	Limit   int
}

// TaskSummary holds counts over a whole filtered scope, independent of paging.
type TaskSummary struct {
	Total      int
	ByStage    map[Stage]int
	ByPriority map[Priority]int
}

type StageCounts struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

func (c *StageCounts) Add(s Stage) {
	c.Total++
	switch s {
	case StageTodo:
		c.Todo++
	case StageInProgress:
		c.InProgress++
	case StageCompleted:
		c.Completed++
	}
}

type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
