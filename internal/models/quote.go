package models

import (
	"time"

	"gorm.io/gorm"
)

type Quote struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Slug            string         `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	AuthorID        string         `gorm:"size:36;not null;index" json:"authorId"` // 发布者 (User)
	Author          *User          `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author,omitempty"`
	CategoryID      string         `gorm:"size:36;not null;index" json:"categoryId"`
	Category        *Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category,omitempty"`
	AuthorProfileID string         `gorm:"size:36;not null;index" json:"authorProfileId"`
	AuthorProfile   *AuthorProfile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"authorProfile,omitempty"`
	Featured        bool           `json:"featured"`
	Likes           int            `gorm:"not null;default:0" json:"likes"`
	Bookmarks       int            `gorm:"not null;default:0" json:"bookmarks"`
	DownloadCount   int            `gorm:"not null;default:0" json:"downloadCount"`
	Version         int            `gorm:"not null;default:1" json:"version"` // 乐观锁
	Tags            []Tag          `gorm:"many2many:quote_tags;" json:"tags,omitempty"`
	Images          []QuoteImage   `gorm:"constraint:OnDelete:CASCADE;" json:"images,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`

	// 非数据库字段，用于查询时填充
	IsLiked      bool `gorm:"-" json:"isLiked"`
	IsBookmarked bool `gorm:"-" json:"isBookmarked"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	q.ID = ensureID(q.ID)
	return nil
}

// Gallery is an uploaded image that can be used as a quote background.
type Gallery struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	URL         string    `gorm:"not null" json:"url"`
	PublicID    string    `gorm:"uniqueIndex;not null" json:"publicId"`
	Title       string    `json:"title,omitempty"`
	AltText     string    `json:"altText,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Format      string    `gorm:"size:10;index" json:"format"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Bytes       int64     `json:"bytes"`
	IsGlobal    bool      `gorm:"index" json:"isGlobal"`
	UsageCount  int       `gorm:"not null;default:0" json:"usageCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (g *Gallery) BeforeCreate(tx *gorm.DB) error {
	g.ID = ensureID(g.ID)
	return nil
}

// QuoteImage links a quote to a gallery image.
type QuoteImage struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	QuoteID      string    `gorm:"size:36;not null;uniqueIndex:idx_quote_gallery" json:"quoteId"`
	GalleryID    string    `gorm:"size:36;not null;uniqueIndex:idx_quote_gallery" json:"galleryId"`
	Gallery      *Gallery  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"gallery,omitempty"`
	IsActive     bool      `json:"isActive"`
	IsBackground bool      `json:"isBackground"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (qi *QuoteImage) BeforeCreate(tx *gorm.DB) error {
	qi.ID = ensureID(qi.ID)
	return nil
}
