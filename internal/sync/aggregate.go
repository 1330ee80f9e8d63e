package sync

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/studio"
)

const (
	// AttendedStatus is the check-in status the studio API reports for a
	// participant who attended. The name is the API's, not ours.
	AttendedStatus = "Cancel check in"

	// CheckinTimeLayout is the layout of check-in timestamps, always UTC
	CheckinTimeLayout = "2006-01-02 15:04:05"

	// DisplayTimeLayout renders zero-padded 12-hour times with lowercase am/pm
	DisplayTimeLayout = "03:04 pm"

	// programDateLayout is the calendar date layout expected by the studio API
	programDateLayout = "2006-01-02"

	// creditPerCheckin is the attendance time credited for each qualifying event
	creditPerCheckin = time.Hour
)

// flattenParticipants merges every category into one list. Categories are
// visited in name order so the result is stable across runs.
func flattenParticipants(byCategory map[string][]studio.Participant) []studio.Participant {
	categories := make([]string, 0, len(byCategory))
	total := 0
	for name, participants := range byCategory {
		categories = append(categories, name)
		total += len(participants)
	}
	sort.Strings(categories)

	out := make([]studio.Participant, 0, total)
	for _, name := range categories {
		out = append(out, byCategory[name]...)
	}
	return out
}

// aggregateParticipant builds the roster entry of a participant from its
// check-in events. It returns false when no event marks attendance.
func aggregateParticipant(
	participant studio.Participant,
	events []studio.CheckinEvent,
	loc *time.Location,
) (roster.Student, bool, error) {
	var checkins []time.Time
	for _, event := range events {
		if event.Status != AttendedStatus {
			continue
		}
		t, err := time.Parse(CheckinTimeLayout, event.Timestamp)
		if err != nil {
			return roster.Student{}, false, fmt.Errorf(
				"invalid check-in time %q for participant %s: %w", event.Timestamp, participant.ParticipantID, err)
		}
		checkins = append(checkins, t)
	}

	if len(checkins) == 0 {
		return roster.Student{}, false, nil
	}

	slices.SortFunc(checkins, func(a, b time.Time) int { return a.Compare(b) })
	start := checkins[0]
	end := start.Add(time.Duration(len(checkins)) * creditPerCheckin)

	return roster.Student{
		Name:         participant.FirstName + " " + participant.LastName,
		Belt:         participant.RankName,
		StartTime:    start.UTC(),
		StartDisplay: start.In(loc).Format(DisplayTimeLayout),
		EndDisplay:   end.In(loc).Format(DisplayTimeLayout),
	}, true, nil
}

// sortByStart orders students by start time, keeping input order on ties
func sortByStart(students []roster.Student) {
	slices.SortStableFunc(students, func(a, b roster.Student) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
