package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"archer/internal/errors"

	"github.com/google/uuid"
)

const (
	deviceIDFile    = "device_id"
	sessionFile     = "session.json"
	pendingFlowFile = "pending_flow"
)

// Installation is the on-disk state of one client install.
type Installation struct {
	dir string
}

// OpenInstallation prepares dir for use, creating it when missing.
func OpenInstallation(dir string) (*Installation, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	return &Installation{dir: dir}, nil
}

// DeviceID returns the installation's id, generating and persisting it on
// first use so that it stays stable across runs.
func (in *Installation) DeviceID() (string, error) {
	path := filepath.Join(in.dir, deviceIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", errors.Wrap(err, "failed to read device id")
	}

	id := uuid.NewString()
	if err := writeFileAtomic(path, []byte(id+"\n")); err != nil {
		return "", errors.Wrap(err, "failed to persist device id")
	}

	return id, nil
}

// ClientInfo describes this installation to the server.
func (in *Installation) ClientInfo() (ClientInfo, error) {
	id, err := in.DeviceID()
	if err != nil {
		return ClientInfo{}, err
	}

	return ClientInfo{
		DeviceID:   id,
		Descriptor: "archerctl/" + runtime.GOOS + "-" + runtime.GOARCH,
	}, nil
}

// SaveSession stores the signed-in session.
func (in *Installation) SaveSession(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	return writeFileAtomic(filepath.Join(in.dir, sessionFile), data)
}

// Session loads the stored session, or nil when signed out.
func (in *Installation) Session() (*Session, error) {
	data, err := os.ReadFile(filepath.Join(in.dir, sessionFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session")
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode session")
	}

	return &s, nil
}

// ClearSession forgets the stored session.
func (in *Installation) ClearSession() error {
	return removeIfExists(filepath.Join(in.dir, sessionFile))
}

// SavePendingFlow remembers the token of a flow waiting on a browser redirect.
func (in *Installation) SavePendingFlow(token string) error {
	return writeFileAtomic(filepath.Join(in.dir, pendingFlowFile), []byte(token))
}

// PendingFlow returns the pending flow token, or "" when none is stored.
func (in *Installation) PendingFlow() (string, error) {
	data, err := os.ReadFile(filepath.Join(in.dir, pendingFlowFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read pending flow")
	}

	return strings.TrimSpace(string(data)), nil
}

// ClearPendingFlow forgets the pending flow token.
func (in *Installation) ClearPendingFlow() error {
	return removeIfExists(filepath.Join(in.dir, pendingFlowFile))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return errors.WithStack(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()

		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.Rename(tmp.Name(), path))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}

	return nil
}
