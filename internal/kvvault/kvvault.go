// Package kvvault implements keychain.Vault over an OpenBao or HashiCorp
// Vault KV version 2 secrets engine.
//
// Items live at <prefix>/<group>/<account> under the mount, with the
// account path-escaped so keys like "chat/database-url" stay one entry.
// Items without an access group live under the "default" group, and an
// unscoped query only sees that group.
package kvvault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/benaskins/strongbox/internal/keychain"
)

const (
	DefaultMount  = "secret"
	DefaultPrefix = "strongbox"
	defaultGroup  = "default"

	requestTimeout = 5 * time.Second
)

// kvClient is the subset of *api.KVv2 the vault uses.
type kvClient interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...api.KVOption) (*api.KVSecret, error)
	DeleteMetadata(ctx context.Context, secretPath string) error
}

// lister is the subset of *api.Logical the vault uses.
type lister interface {
	ListWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// Config selects the server and location of the items.
type Config struct {
	Address string
	Token   string
	Mount   string
	Prefix  string
}

// Vault is a keychain.Vault backed by a KV v2 mount.
type Vault struct {
	kv     kvClient
	list   lister
	mount  string
	prefix string
}

// New creates a client from cfg. Address and Token fall back to BAO_ADDR
// and BAO_TOKEN, then to the SDK's VAULT_* handling.
func New(cfg Config) (*Vault, error) {
	conf := api.DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = os.Getenv("BAO_ADDR")
	}
	if cfg.Address != "" {
		conf.Address = cfg.Address
	}

	client, err := api.NewClient(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create openbao client: %w", err)
	}

	if cfg.Token == "" {
		cfg.Token = os.Getenv("BAO_TOKEN")
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	if cfg.Mount == "" {
		cfg.Mount = DefaultMount
	}
	return newVault(client.KVv2(cfg.Mount), client.Logical(), cfg.Mount, cfg.Prefix), nil
}

func newVault(kv kvClient, list lister, mount, prefix string) *Vault {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Vault{
		kv:     kv,
		list:   list,
		mount:  mount,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (v *Vault) dir(group string) string {
	if group == "" {
		group = defaultGroup
	}
	return v.prefix + "/" + url.PathEscape(group)
}

func (v *Vault) path(group, account string) string {
	return v.dir(group) + "/" + url.PathEscape(account)
}

func (v *Vault) Query(q keychain.Query) ([]keychain.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if q.Account != "" {
		r, err := v.read(ctx, q.AccessGroup, q.Account, q.ReturnData)
		if err != nil {
			return nil, err
		}
		return []keychain.Record{r}, nil
	}

	accounts, err := v.accounts(ctx, q.AccessGroup)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, keychain.ErrItemNotFound
	}
	if q.Limit == keychain.MatchOne {
		accounts = accounts[:1]
	}

	records := make([]keychain.Record, 0, len(accounts))
	for _, account := range accounts {
		if !q.ReturnData {
			records = append(records, keychain.Record{Account: account, AccessGroup: q.AccessGroup})
			continue
		}
		r, err := v.read(ctx, q.AccessGroup, account, true)
		if errors.Is(err, keychain.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (v *Vault) Insert(r keychain.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := v.read(ctx, r.AccessGroup, r.Account, false); err == nil {
		return fmt.Errorf("%w: %s", keychain.ErrDuplicateItem, r.Account)
	} else if !errors.Is(err, keychain.ErrItemNotFound) {
		return err
	}

	data := map[string]interface{}{
		"data":       base64.StdEncoding.EncodeToString(r.Data),
		"accessible": r.Accessible.String(),
	}
	_, err := v.kv.Put(ctx, v.path(r.AccessGroup, r.Account), data, api.WithCheckAndSet(0))
	if err != nil {
		if isCASMismatch(err) {
			return fmt.Errorf("%w: %s", keychain.ErrDuplicateItem, r.Account)
		}
		return fmt.Errorf("openbao put %q: %w", r.Account, err)
	}
	return nil
}

// isCASMismatch reports whether err is the server rejecting a write because
// the path already has a version.
func isCASMismatch(err error) bool {
	var resp *api.ResponseError
	if !errors.As(err, &resp) || resp.StatusCode != http.StatusBadRequest {
		return false
	}
	for _, msg := range resp.Errors {
		if strings.Contains(msg, "check-and-set") {
			return true
		}
	}
	return false
}

func (v *Vault) Delete(q keychain.Query) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	accounts := []string{q.Account}
	if q.Account == "" {
		var err error
		accounts, err = v.accounts(ctx, q.AccessGroup)
		if err != nil {
			return err
		}
	}
	if len(accounts) == 0 {
		return keychain.ErrItemNotFound
	}

	for _, account := range accounts {
		if err := v.kv.DeleteMetadata(ctx, v.path(q.AccessGroup, account)); err != nil {
			return fmt.Errorf("openbao delete %q: %w", account, err)
		}
	}
	return nil
}

func (v *Vault) read(ctx context.Context, group, account string, withData bool) (keychain.Record, error) {
	secret, err := v.kv.Get(ctx, v.path(group, account))
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return keychain.Record{}, keychain.ErrItemNotFound
		}
		return keychain.Record{}, fmt.Errorf("openbao get %q: %w", account, err)
	}
	if secret == nil || secret.Data == nil {
		return keychain.Record{}, keychain.ErrItemNotFound
	}

	r := keychain.Record{Account: account, AccessGroup: group}
	if accessible, _ := secret.Data["accessible"].(string); accessible == keychain.AccessibleWhenUnlockedThisDeviceOnly.String() {
		r.Accessible = keychain.AccessibleWhenUnlockedThisDeviceOnly
	}
	if withData {
		encoded, _ := secret.Data["data"].(string)
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return keychain.Record{}, fmt.Errorf("openbao get %q: malformed payload: %w", account, err)
		}
		r.Data = data
	}
	return r, nil
}

// accounts lists the accounts stored in a group.
func (v *Vault) accounts(ctx context.Context, group string) ([]string, error) {
	secret, err := v.list.ListWithContext(ctx, v.mount+"/metadata/"+v.dir(group))
	if err != nil {
		return nil, fmt.Errorf("openbao list: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, _ := secret.Data["keys"].([]interface{})
	accounts := make([]string, 0, len(raw))
	for _, k := range raw {
		name, ok := k.(string)
		if !ok || strings.HasSuffix(name, "/") {
			continue
		}
		account, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
