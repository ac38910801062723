package stories

import "time"

// Story is the local mirror of a Hacker News item.
type Story struct {
	// StoryID is the Hacker News item id.
	StoryID int64 `gorm:"column:story_id;primaryKey;autoIncrement:false" json:"id"`
	// Time is the submission time, zero when the source omits it.
	Time time.Time `gorm:"column:time;index" json:"time"`
	// Title is the story headline.
	Title string `gorm:"column:title;not null" json:"title"`
	// URL is the linked article, empty for text posts.
	URL string `gorm:"column:url;not null" json:"url"`
	// By is the submitter's username.
	By string `gorm:"column:author;not null" json:"by"`
	// Score is the story's points.
	Score int64 `gorm:"column:score;not null" json:"score"`
}

// TableName overrides the table name used by Story to `stories`.
func (Story) TableName() string {
	return "stories"
}

// Payload converts the story back to the source wire shape, as written to snapshots.
// Absent fields are omitted so a snapshot round trip restores the same defaults.
func (s *Story) Payload() Payload {
	p := Payload{"id": s.StoryID}
	if !s.Time.IsZero() {
		p["time"] = s.Time.Unix()
	}
	if s.Title != "" {
		p["title"] = s.Title
	}
	if s.URL != "" {
		p["url"] = s.URL
	}
	if s.By != "" {
		p["by"] = s.By
	}
	if s.Score != 0 {
		p["score"] = s.Score
	}
	return p
}
