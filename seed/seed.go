// Package seed loads the demo data set: five users with posts, comments,
// likes and a small follow graph centred on the first user.
package seed

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
)

// Summary counts the rows created by Run.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
	Follows  int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d posts=%d comments=%d likes=%d follows=%d",
		s.Users, s.Posts, s.Comments, s.Likes, s.Follows)
}

type seedUser struct {
	username, email, displayName string
	bio, avatar                  *string
}

type seedPost struct {
	title, content string
	imageURL       *string
}

type seedComment struct {
	content   string
	postIndex int
}

func ptr(s string) *string { return &s }

var users = []seedUser{
	{"johndoe", "john@example.com", "John Doe", ptr("Software developer and coffee enthusiast ☕"), ptr("https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face")},
	{"sarahsmith", "sarah@example.com", "Sarah Smith", ptr("Designer by day, photographer by night 📸"), ptr("https://images.unsplash.com/photo-1494790108755-2616b612b1e2?w=150&h=150&fit=crop&crop=face")},
	{"mikejohnson", "mike@example.com", "Mike Johnson", ptr("Tech blogger and startup founder 🚀"), ptr("https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face")},
	{"emilydavis", "emily@example.com", "Emily Davis", ptr("Product manager and hiking enthusiast 🥾"), ptr("https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=150&h=150&fit=crop&crop=face")},
	{"alexwilson", "alex@example.com", "Alex Wilson", nil, nil},
}

var posts = []seedPost{
	{"Getting Started with GraphQL", "Just built my first GraphQL API and I'm amazed by how clean and efficient it is! The type system makes development so much smoother. Anyone else working with GraphQL lately?", ptr("https://images.unsplash.com/photo-1558494949-ef010cbdcc31?w=600&h=400&fit=crop")},
	{"Beautiful Sunset from My Hike", "Caught this incredible sunset during my weekend hike. Sometimes you need to disconnect from screens and connect with nature. What's your favorite way to unwind?", ptr("https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=600&h=400&fit=crop")},
	{"Coffee Shop Discoveries", "Found this amazing local coffee shop with the perfect atmosphere for coding. Their Ethiopian beans are incredible! ☕ What's your go-to work spot?", ptr("https://images.unsplash.com/photo-1501339847302-ac426a4a7cbb?w=600&h=400&fit=crop")},
	{"New Product Launch Insights", "Just wrapped up our biggest product launch yet! Key learning: user feedback during beta testing is absolutely invaluable. The iterations we made based on early user input made all the difference.", nil},
	{"Docker vs Podman: My Experience", "Been experimenting with Podman as a Docker alternative. The rootless containers and systemd integration are impressive, but Docker's ecosystem is still unmatched. Thoughts?", nil},
	{"Weekend Photography Session", "Spent the day capturing street photography downtown. There's something magical about candid moments in urban settings. Photography teaches you to really see the world differently.", ptr("https://images.unsplash.com/photo-1449824913935-59a10b8d2000?w=600&h=400&fit=crop")},
	{"Startup Life: Lessons Learned", "Two years into building our startup and here are the biggest lessons: 1) Talk to customers early and often, 2) Build MVP fast, 3) Team culture matters more than you think. What would you add?", nil},
	{"Mountain Trail Adventure", "Conquered the 10-mile mountain trail today! The views at the summit were absolutely worth every step. Already planning the next adventure. Any recommendations for challenging trails?", ptr("https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=600&h=400&fit=crop")},
}

var comments = []seedComment{
	{"Great insights! I've been wanting to try GraphQL for my next project.", 0},
	{"The type safety alone makes it worth switching from REST.", 0},
	{"Absolutely stunning! Where was this taken?", 1},
	{"Nature photography at its finest 📸", 1},
	{"I need to find spots like this for remote work!", 2},
	{"Ethiopian coffee is the best! What brewing method do you use?", 2},
	{"Congrats on the launch! User feedback is definitely crucial.", 3},
	{"Would love to hear more details about your beta testing process.", 3},
	{"Been curious about Podman too. How's the learning curve?", 4},
	{"Docker's ecosystem is hard to beat, but competition is good!", 4},
	{"Love the urban photography style! What camera do you use?", 5},
	{"Street photography captures life in such an authentic way.", 5},
	{"Great advice! I'd add: don't be afraid to pivot when needed.", 6},
	{"Team culture really is everything. Thanks for sharing!", 6},
	{"That's an impressive distance! I'm inspired to start hiking.", 7},
	{"The summit views always make the climb worth it!", 7},
}

// Run wipes the five tables and loads the demo data. Follow edges go through
// the follow service so the adjacency cache is rebuilt as well.
func Run(ctx context.Context, db *gorm.DB, svc *services.Services) (Summary, error) {
	var sum Summary
	if err := wipe(ctx, db); err != nil {
		return sum, err
	}

	created := make([]models.User, len(users))
	for i, u := range users {
		created[i] = models.User{
			Username:    u.username,
			Email:       u.email,
			DisplayName: u.displayName,
			Bio:         u.bio,
			Avatar:      u.avatar,
		}
	}
	if err := db.WithContext(ctx).Create(&created).Error; err != nil {
		return sum, fmt.Errorf("seed users: %w", err)
	}
	sum.Users = len(created)

	createdPosts := make([]models.Post, len(posts))
	for i, p := range posts {
		createdPosts[i] = models.Post{
			AuthorID: created[i%len(created)].ID,
			Title:    p.title,
			Content:  p.content,
			ImageURL: p.imageURL,
		}
		// one at a time so created_at follows the list order
		if err := db.WithContext(ctx).Create(&createdPosts[i]).Error; err != nil {
			return sum, fmt.Errorf("seed posts: %w", err)
		}
	}
	sum.Posts = len(createdPosts)

	createdComments := make([]models.Comment, len(comments))
	for i, c := range comments {
		createdComments[i] = models.Comment{
			Content:  c.content,
			AuthorID: created[(i+1)%len(created)].ID,
			PostID:   createdPosts[c.postIndex].ID,
		}
	}
	if err := db.WithContext(ctx).Create(&createdComments).Error; err != nil {
		return sum, fmt.Errorf("seed comments: %w", err)
	}
	sum.Comments = len(createdComments)

	// 1..4 likes per post from consecutive users
	for i, p := range createdPosts {
		for j := 0; j < i%4+1; j++ {
			if _, err := svc.Interaction.Like(ctx, created[(i+j)%len(created)].ID, p.ID); err != nil {
				return sum, fmt.Errorf("seed likes: %w", err)
			}
			sum.Likes++
		}
	}

	john := created[0].ID
	var pairs [][2]uint
	for _, u := range created[1:] {
		pairs = append(pairs, [2]uint{john, u.ID}, [2]uint{u.ID, john})
	}
	pairs = append(pairs,
		[2]uint{created[1].ID, created[2].ID},
		[2]uint{created[1].ID, created[3].ID},
		[2]uint{created[2].ID, created[1].ID},
		[2]uint{created[3].ID, created[2].ID},
	)
	for _, p := range pairs {
		_, err := svc.Follow.Follow(ctx, p[0], p[1])
		if err != nil && !errors.Is(err, errs.ErrAlreadyFollowing) {
			return sum, fmt.Errorf("seed follows: %w", err)
		}
		if err == nil {
			sum.Follows++
		}
	}
	return sum, nil
}

func wipe(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&models.Follow{}, &models.Like{}, &models.Comment{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}
