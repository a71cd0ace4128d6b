//go:build darwin

package keychain

import (
	"errors"
	"fmt"

	gokeychain "github.com/keybase/go-keychain"
)

const (
	// ServiceName is the Keychain service attribute for all strongbox secrets.
	ServiceName = "com.strongbox"
)

// SystemVault drives the macOS Keychain. Every item it touches carries its
// service attribute, so Query and Delete never reach items written by other
// applications.
//
// The Keychain files an item inserted without an access group under the
// application's default group, so the group attribute cannot tell ungrouped
// items apart. The label does: ungrouped items are labelled
// "strongbox: <account>" and grouped ones "strongbox (<group>): <account>",
// and an empty query group only selects the former.
type SystemVault struct {
	service string
}

// NewSystemVault creates a Keychain-backed vault for the given service.
func NewSystemVault(service string) *SystemVault {
	return &SystemVault{service: service}
}

func label(account, group string) string {
	if group == "" {
		return "strongbox: " + account
	}
	return fmt.Sprintf("strongbox (%s): %s", group, account)
}

func (v *SystemVault) item(account, group string) gokeychain.Item {
	item := gokeychain.NewItem()
	item.SetSecClass(gokeychain.SecClassGenericPassword)
	item.SetService(v.service)
	if account != "" {
		item.SetAccount(account)
		if group == "" {
			item.SetLabel(label(account, ""))
		}
	}
	if group != "" {
		item.SetAccessGroup(group)
	}
	return item
}

// Query searches generic passwords under the vault's service.
func (v *SystemVault) Query(q Query) ([]Record, error) {
	item := v.item(q.Account, q.AccessGroup)
	if q.Limit == MatchAll {
		item.SetMatchLimit(gokeychain.MatchLimitAll)
	} else {
		item.SetMatchLimit(gokeychain.MatchLimitOne)
	}
	item.SetReturnAttributes(q.ReturnAttributes || q.Limit == MatchAll || q.AccessGroup == "")
	item.SetReturnData(q.ReturnData)

	results, err := gokeychain.QueryItem(item)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("keychain query %q: %w", q.Account, err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		account := r.Account
		if account == "" {
			account = q.Account
		}
		group := r.AccessGroup
		if q.AccessGroup == "" {
			if r.Label != label(account, "") {
				continue
			}
			group = ""
		}
		records = append(records, Record{
			Account:     account,
			AccessGroup: group,
			Data:        r.Data,
		})
	}
	if len(records) == 0 {
		return nil, ErrItemNotFound
	}
	return records, nil
}

// Insert adds a generic password.
func (v *SystemVault) Insert(r Record) error {
	item := gokeychain.NewGenericPassword(
		v.service,
		r.Account,
		label(r.Account, r.AccessGroup),
		r.Data,
		r.AccessGroup,
	)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	if r.Accessible == AccessibleWhenUnlockedThisDeviceOnly {
		item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)
	}

	if err := gokeychain.AddItem(item); err != nil {
		if errors.Is(err, gokeychain.ErrorDuplicateItem) {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, r.Account)
		}
		return fmt.Errorf("keychain add %q: %w", r.Account, err)
	}
	return nil
}

// Delete removes matching generic passwords under the vault's service.
// Deleting every ungrouped item goes one account at a time, since only a
// labelled query can leave grouped items alone.
func (v *SystemVault) Delete(q Query) error {
	if q.AccessGroup == "" && q.Account == "" {
		records, err := v.Query(Query{ReturnAttributes: true, Limit: MatchAll})
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := v.Delete(Query{Account: r.Account}); err != nil && !errors.Is(err, ErrItemNotFound) {
				return err
			}
		}
		return nil
	}

	err := gokeychain.DeleteItem(v.item(q.Account, q.AccessGroup))
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("keychain delete %q: %w", q.Account, err)
	}
	return nil
}
