// Package firestore stores passport photos on the student and teacher
// documents of a Firestore database.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// Document fields written by SavePhoto
const (
	FieldPhotoURL       = "photoUrl"
	FieldPhotoUpdatedAt = "photoUpdatedAt"
)

// Options configure the Firebase app
type Options struct {
	ProjectID       string
	CredentialsFile string // empty uses application default credentials
}

// Store is a PhotoSaver and ProfileLoader backed by Firestore
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

var (
	_ store.PhotoSaver    = (*Store)(nil)
	_ store.ProfileLoader = (*Store)(nil)
)

// New initializes a Firebase app and opens its Firestore client
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: init app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: open client: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *firestore.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Collection returns the collection holding profiles of a role
func Collection(role types.Role) (string, error) {
	switch role {
	case types.RoleStudent:
		return "students", nil
	case types.RoleTeacher:
		return "teachers", nil
	}
	return "", fmt.Errorf("firestore: unknown role %q", role)
}

func (s *Store) doc(ref types.ProfileRef) (*firestore.DocumentRef, error) {
	if err := types.Validate(ref); err != nil {
		return nil, err
	}
	coll, err := Collection(ref.Role)
	if err != nil {
		return nil, err
	}
	return s.client.Collection(coll).Doc(ref.ID), nil
}

// SavePhoto merges the photo into the profile document, leaving other fields untouched
func (s *Store) SavePhoto(ctx context.Context, ref types.ProfileRef, dataURL string) error {
	doc, err := s.doc(ref)
	if err != nil {
		return err
	}

	_, err = doc.Set(ctx, map[string]any{
		FieldPhotoURL:       dataURL,
		FieldPhotoUpdatedAt: s.now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore: save photo %s/%s: %w", ref.Role, ref.ID, err)
	}
	return nil
}

// LoadProfile reads the profile document for ref
func (s *Store) LoadProfile(ctx context.Context, ref types.ProfileRef) (types.Profile, error) {
	doc, err := s.doc(ref)
	if err != nil {
		return types.Profile{}, err
	}

	snap, err := doc.Get(ctx)
	if snap != nil && !snap.Exists() {
		return types.Profile{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, ref.Role, ref.ID)
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("firestore: load profile %s/%s: %w", ref.Role, ref.ID, err)
	}

	var p types.Profile
	if err := snap.DataTo(&p); err != nil {
		return types.Profile{}, fmt.Errorf("firestore: decode profile %s/%s: %w", ref.Role, ref.ID, err)
	}
	p.ID, p.Role = ref.ID, ref.Role
	return p, nil
}

// Close releases the Firestore client
func (s *Store) Close() error {
	return s.client.Close()
}
