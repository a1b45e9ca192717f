package orchestrator

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	mathrand "math/rand"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/cloudiam"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/dockerctl"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/snapshot"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

type Config struct {
	BaseSandboxImage  string
	RegistryBaseURL   string
	ObjectStoreBucket string
	SSHHostIP         string
	PortRangeLow      int
	PortRangeHigh     int
}

// Orchestrator owns the project state machine and drives the sagas that
// move a project between states, composing the store with the docker,
// cloud IAM, and snapshot controllers (§4.5).
type Orchestrator struct {
	store  *store.Store
	docker *dockerctl.Client
	cloud  *cloudiam.Manager
	snaps  *snapshot.Manager
	cfg    Config
	logger *log.Logger
	rng    *mathrand.Rand
}

func New(st *store.Store, docker *dockerctl.Client, cloud *cloudiam.Manager, snaps *snapshot.Manager, cfg Config, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		docker: docker,
		cloud:  cloud,
		snaps:  snaps,
		cfg:    cfg,
		logger: logger,
		rng:    mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// allowedTransitions encodes the state machine in §4.5: which source
// statuses a given target operation may start from. "stop" and "start"
// also gate the /snapshot and /restore aliases respectively.
var allowedTransitions = map[string][]model.Status{
	"start": {model.StatusStopped},
	"stop":  {model.StatusRunning},
	"delete": {
		model.StatusCreating, model.StatusRunning, model.StatusStopped,
		model.StatusError, model.StatusSnapshotting, model.StatusRestoring,
	},
}

func guardTransition(op string, current model.Status) error {
	for _, allowed := range allowedTransitions[op] {
		if current == allowed {
			return nil
		}
	}
	return perr.Precondition(fmt.Sprintf("cannot %s project in status %q", op, current))
}

// generateSSHKeyPair mints a fresh ed25519 key pair per project (§3
// SSHPublicKey / SSHPrivateKey): the public half is injected into the
// container's authorized_keys, the private half is returned to the caller
// once, on project creation.
func generateSSHKeyPair() (publicKeyAuthorized, privateKeyPEM string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", "", err
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", err
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}
	return string(ssh.MarshalAuthorizedKey(sshPub)), string(pem.EncodeToMemory(block)), nil
}

func nowUTC() time.Time { return time.Now().UTC() }
