package skills

import (
	"strings"
	"time"
)

const clockQuery = "what time is it"

// clock answers "what time is it" with the hub's local time.
type clock struct {
	skillBase
	now func() time.Time
}

func newClock(data SkillData, _ Deps) (Skill, error) {
	return &clock{skillBase: skillBase{data: data}, now: time.Now}, nil
}

func (c *clock) Handle(ev Event) *Reply {
	ended, ok := ev.(SpeechSessionEnded)
	if !ok {
		return nil
	}
	if !strings.Contains(strings.ToLower(ended.Text), clockQuery) {
		return nil
	}
	now := c.now()
	return c.reply("RCH:ClockSkill", "the time is "+TimeText(now.Hour(), now.Minute()))
}

var numberWords = []string{
	"twelve", "one", "two", "three", "four", "five", "six",
	"seven", "eight", "nine", "ten", "eleven", "twelve",
	"thirteen", "fourteen", "quarter", "sixteen", "seventeen",
	"eighteen", "nineteen", "twenty",
}

func minuteWords(m int) string {
	if m <= 20 {
		if m == 0 {
			return ""
		}
		return numberWords[m]
	}
	if m == 30 {
		return "half"
	}
	return "twenty " + numberWords[m-20]
}

// TimeText renders a 24 hour clock time as spoken English, such as
// "quarter past three" or "ten to twelve".
func TimeText(hour, minute int) string {
	h := hour % 12
	next := (hour + 1) % 12

	switch {
	case minute == 0:
		if hour == 0 {
			return "midnight"
		}
		if hour == 12 {
			return "noon"
		}
		return numberWords[h] + " o'clock"
	case minute <= 30:
		return minuteWords(minute) + unit(minute) + " past " + numberWords[h]
	default:
		return minuteWords(60-minute) + unit(60-minute) + " to " + numberWords[next]
	}
}

// unit appends "minutes" unless the count is a word of its own.
func unit(m int) string {
	switch m {
	case 5, 10, 15, 20, 25, 30:
		return ""
	case 1:
		return " minute"
	}
	return " minutes"
}
