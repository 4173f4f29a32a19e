// Package domain defines the persistence models for customer links, pending
// email verifications, and product ratings. These types are mapped with GORM
// and form the core data layer of the community facade.
package domain

import "time"

// Link is the durable one-to-one association between a chat identity and a
// shop customer email. Both sides of the pair are unique across the table:
// a chat identity is linked to at most one email and an email is claimed by
// at most one chat identity.
//
// Links are never mutated in place. Rebinding an identity is a delete of the
// old row followed by an insert of the new one, inside one transaction.
type Link struct {
	ChatID    string    `json:"chat_id"    gorm:"type:TEXT NOT NULL;primaryKey"`
	Email     string    `json:"email"      gorm:"type:TEXT NOT NULL;uniqueIndex:ux_links_email"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Link.
func (Link) TableName() string { return "user_links" }

// PendingVerification is an in-flight attempt to prove control of an email.
// At most one live attempt exists per chat identity (chat_id is the primary
// key); starting a new attempt overwrites the previous one.
//
// Rows are not proactively purged when they expire. Readers must treat a row
// as valid only while now < ExpiresAt; a dead row lingers until it is
// overwritten by a new attempt or deleted by a successful confirmation.
type PendingVerification struct {
	ChatID    string    `json:"chat_id"    gorm:"type:TEXT NOT NULL;primaryKey"`
	Email     string    `json:"email"      gorm:"type:TEXT NOT NULL"`
	Code      string    `json:"-"          gorm:"type:TEXT NOT NULL"` // six decimal digits, leading zeros allowed
	ExpiresAt time.Time `json:"expires_at" gorm:"type:DATETIME NOT NULL;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PendingVerification.
func (PendingVerification) TableName() string { return "verification_codes" }

// Rating is one user's scored review of one product. The five criterion
// scores live in [0,10]. The pair (user_id, product_name) is unique with a
// case-insensitive product comparison; re-submission replaces the prior row.
//
// DisplayName is a denormalized snapshot of the user's name at submission
// time. Aggregations that want the current name should prefer the most
// recent row for that user (bounded staleness, by contract).
type Rating struct {
	ID          string `json:"id"           gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      string `json:"user_id"      gorm:"type:TEXT NOT NULL;uniqueIndex:ux_ratings_user_product,priority:1;index:idx_ratings_user"`
	DisplayName string `json:"user_name"    gorm:"type:TEXT NOT NULL"`
	// COLLATE NOCASE makes the unique index, GROUP BY and = comparisons
	// case-insensitive while the stored value keeps its original casing.
	ProductName string `json:"product_name" gorm:"type:TEXT COLLATE NOCASE NOT NULL;uniqueIndex:ux_ratings_user_product,priority:2;index:idx_ratings_product"`

	Visual  float64 `json:"visual"  gorm:"type:REAL NOT NULL;default:0"`
	Smell   float64 `json:"smell"   gorm:"type:REAL NOT NULL;default:0"`
	Touch   float64 `json:"touch"   gorm:"type:REAL NOT NULL;default:0"`
	Taste   float64 `json:"taste"   gorm:"type:REAL NOT NULL;default:0"`
	Effects float64 `json:"effects" gorm:"type:REAL NOT NULL;default:0"`

	Comment string    `json:"comment,omitempty" gorm:"type:TEXT"`
	RatedAt time.Time `json:"timestamp"         gorm:"type:DATETIME NOT NULL;index"`
}

// TableName returns the database table name for Rating.
func (Rating) TableName() string { return "ratings" }

// Average returns the mean of the five criterion scores. Criteria that were
// never written default to zero and still divide by five — the historical
// "missing counts as zero" behavior aggregate queries rely on.
func (r Rating) Average() float64 {
	return (r.Visual + r.Smell + r.Touch + r.Taste + r.Effects) / 5.0
}
