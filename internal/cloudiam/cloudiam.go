// Package cloudiam implements C3: a per-project cloud service account with a
// minted key, and conditional object-store read/write bindings scoped to the
// project's object-store prefix (§4.3).
package cloudiam

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

// Manager wraps the two Google APIs this controller needs: IAM (service
// account + key lifecycle) and Storage (bucket IAM policy bindings).
type Manager struct {
	projectID string
	bucket    string
	iamSvc    *iam.Service
	storageSvc *storage.Service
	logger    *log.Logger
}

// New builds a Manager using application-default credentials, the same
// client-construction idiom the rest of the corpus's GCP tooling uses.
func New(ctx context.Context, projectID, bucket string, logger *log.Logger) (*Manager, error) {
	creds, err := google.FindDefaultCredentials(ctx, iam.CloudPlatformScope, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	iamSvc, err := iam.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("new iam service: %w", err)
	}
	storageSvc, err := storage.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("new storage service: %w", err)
	}
	return &Manager{projectID: projectID, bucket: bucket, iamSvc: iamSvc, storageSvc: storageSvc, logger: logger}, nil
}

// Identity is everything CreateForProject mints for a project (§3
// CloudSAEmail / CloudSAKeyJSON).
type Identity struct {
	ServiceAccountEmail string
	KeyJSON             []byte
}

// sharedObjectPrefix is the object-store path every project's service
// account may read from but never write to (§4.3 "a read grant on a
// shared prefix").
const sharedObjectPrefix = "shared/"

// accountID derives a valid GCP service account id (max 30 chars, must
// start with a letter) from a project id.
func accountID(projectID string) string {
	id := "pomodex-" + projectID
	if len(id) > 30 {
		id = id[:30]
	}
	return id
}

// CreateForProject provisions a dedicated service account, mints a JSON key,
// and grants it object/read-write on the project's object-store prefix
// (§4.3 create_for_project).
func (m *Manager) CreateForProject(ctx context.Context, projectID string) (Identity, error) {
	acctID := accountID(projectID)
	parent := "projects/" + m.projectID
	sa, err := m.iamSvc.Projects.ServiceAccounts.Create(parent, &iam.CreateServiceAccountRequest{
		AccountId: acctID,
		ServiceAccount: &iam.ServiceAccount{
			DisplayName: fmt.Sprintf("Pomodex sandbox %s", projectID),
		},
	}).Context(ctx).Do()
	if err != nil {
		return Identity{}, perr.Backend("create service account failed", err)
	}

	key, err := m.iamSvc.Projects.ServiceAccounts.Keys.Create(sa.Name, &iam.CreateServiceAccountKeyRequest{
		PrivateKeyType: "TYPE_GOOGLE_CREDENTIALS_FILE",
	}).Context(ctx).Do()
	if err != nil {
		_, _ = m.iamSvc.Projects.ServiceAccounts.Delete(sa.Name).Context(ctx).Do()
		return Identity{}, perr.Backend("create service account key failed", err)
	}

	if err := m.grantObjectAccess(ctx, sa.Email, projectID); err != nil {
		_, _ = m.iamSvc.Projects.ServiceAccounts.Delete(sa.Name).Context(ctx).Do()
		return Identity{}, err
	}

	return Identity{ServiceAccountEmail: sa.Email, KeyJSON: []byte(key.PrivateKeyData)}, nil
}

// grantObjectAccess adds two conditional bindings on the bucket (§4.3):
// object admin scoped to the project's own prefix (`projects/<id>/`, per
// the glossary's Prefix definition), and object viewer scoped to the
// shared prefix every sandbox may read backups/assets from but not write.
func (m *Manager) grantObjectAccess(ctx context.Context, saEmail, projectID string) error {
	policy, err := m.storageSvc.Buckets.GetIamPolicy(m.bucket).OptionsRequestedPolicyVersion(3).Context(ctx).Do()
	if err != nil {
		return perr.Backend("get bucket iam policy failed", err)
	}
	policy.Version = 3
	member := "serviceAccount:" + saEmail
	policy.Bindings = append(policy.Bindings,
		&storage.PolicyBindings{
			Role:    "roles/storage.objectAdmin",
			Members: []string{member},
			Condition: &storage.Expr{
				Title:      "project-prefix-" + projectID,
				Expression: fmt.Sprintf(`resource.name.startsWith("projects/_/buckets/%s/objects/projects/%s/")`, m.bucket, projectID),
			},
		},
		&storage.PolicyBindings{
			Role:    "roles/storage.objectViewer",
			Members: []string{member},
			Condition: &storage.Expr{
				Title:      "shared-prefix-read-" + projectID,
				Expression: fmt.Sprintf(`resource.name.startsWith("projects/_/buckets/%s/objects/%s")`, m.bucket, sharedObjectPrefix),
			},
		},
	)
	if _, err := m.storageSvc.Buckets.SetIamPolicy(m.bucket, policy).Context(ctx).Do(); err != nil {
		return perr.Backend("set bucket iam policy failed", err)
	}
	return nil
}

// DeleteForProject removes the project's service account, which implicitly
// revokes its keys and bucket bindings (§4.3 delete_for_project). Missing
// accounts are treated as already-deleted.
func (m *Manager) DeleteForProject(ctx context.Context, saEmail string) error {
	if saEmail == "" {
		return nil
	}
	name := fmt.Sprintf("projects/%s/serviceAccounts/%s", m.projectID, saEmail)
	_, err := m.iamSvc.Projects.ServiceAccounts.Delete(name).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return perr.Backend("delete service account failed", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if ok := asGoogleAPIError(err, &gerr); ok {
		return gerr.Code == 404
	}
	return false
}

func asGoogleAPIError(err error, target **googleapi.Error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		*target = gerr
		return true
	}
	return false
}
