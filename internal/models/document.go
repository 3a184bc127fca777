package models

import "time"

// Category buckets published documents for the catalog listings.
type Category string

const (
	CategoryBoshlangich Category = "Boshlang'ich"
	CategoryYuqori      Category = "Yuqori"
	CategoryBSBCHSB     Category = "BSB_CHSB"
	CategoryRusMaktab   Category = "Rus_maktab"
	CategoryGeneral     Category = "General"
)

// Categories lists every category in the order the listing screens show them.
var Categories = []Category{
	CategoryBoshlangich,
	CategoryYuqori,
	CategoryBSBCHSB,
	CategoryRusMaktab,
	CategoryGeneral,
}

// ParseCategory maps a stored or callback value back to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CatalogEntry is the durable record of one document published to the channel.
// It is written once after a successful send and never updated.
type CatalogEntry struct {
	DisplayName      string    `firestore:"displayName"`
	Category         Category  `firestore:"category"`
	ChannelLink      string    `firestore:"channelLink"`
	ChannelMessageID int       `firestore:"channelMessageId"`
	InsertedAt       time.Time `firestore:"insertedAt"`
}

// CatalogLink is the (name, link) pair shown on the category listing screen.
type CatalogLink struct {
	DisplayName string
	ChannelLink string
}

// Setting keys recognized by the publisher.
const (
	SettingPostCaption = "post_caption"
	SettingFooterText  = "footer_text"
)

// DefaultCaptionTemplate is used when post_caption was never set.
const DefaultCaptionTemplate = "{name} | @{channel}"
