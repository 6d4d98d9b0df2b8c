package kv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// Bank returns the bank bounded context.
func (s *Store) Bank() iface.BankContext {
	return &bankContext{store: s}
}

type bankContext struct {
	store *Store
}

type bankUnitOfWork struct {
	tx        *bolt.Tx
	committed bool
}

// Writable begins a unit of work on the bank database.
func (c *bankContext) Writable() (iface.BankUnitOfWork, error) {
	tx, err := c.store.bankDB.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin bank transaction")
	}
	return &bankUnitOfWork{tx: tx}, nil
}

// MarkApplied records a transaction id as applied. It reports false when the
// id was already recorded, which lets strategies skip re-application on
// block replay.
func (u *bankUnitOfWork) MarkApplied(id types.TransactionID) (bool, error) {
	bkt := u.tx.Bucket(appliedBucket)
	if bkt.Get(id.Bytes()) != nil {
		return false, nil
	}
	if err := bkt.Put(id.Bytes(), []byte{1}); err != nil {
		return false, errors.Wrap(err, "could not mark transaction applied")
	}
	return true, nil
}

func (u *bankUnitOfWork) balance(address, token string) (decimal.Decimal, error) {
	enc := u.tx.Bucket(balancesBucket).Get(balanceKey(address, token))
	if enc == nil {
		return decimal.Zero, nil
	}
	row := &types.AddressBalance{}
	if err := decode(enc, row); err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(row.Balance)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "corrupt balance row")
	}
	return bal, nil
}

func (u *bankUnitOfWork) putBalance(address, token string, amount decimal.Decimal) error {
	enc, err := encode(&types.AddressBalance{
		PublicAddress: address,
		Token:         token,
		Balance:       amount.String(),
	})
	if err != nil {
		return err
	}
	return errors.Wrap(u.tx.Bucket(balancesBucket).Put(balanceKey(address, token), enc), "could not save balance")
}

// Credit adds to a balance, creating the row at zero base if missing.
func (u *bankUnitOfWork) Credit(address, token string, amount decimal.Decimal) error {
	bal, err := u.balance(address, token)
	if err != nil {
		return err
	}
	return u.putBalance(address, token, bal.Add(amount))
}

// Debit subtracts from a balance. A debit that would go negative fails with
// ErrInsufficientFunds and writes nothing.
func (u *bankUnitOfWork) Debit(address, token string, amount decimal.Decimal) error {
	bal, err := u.balance(address, token)
	if err != nil {
		return err
	}
	next := bal.Sub(amount)
	if next.IsNegative() {
		return errors.Wrapf(iface.ErrInsufficientFunds, "%s has %s %s, needs %s", address, bal, token, amount)
	}
	return u.putBalance(address, token, next)
}

func (u *bankUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit bank transaction")
	}
	u.committed = true
	return nil
}

func (u *bankUnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	return u.tx.Rollback()
}

// Balance reads one balance row. A missing row reads as a zero balance.
func (c *bankContext) Balance(_ context.Context, address, token string) (*types.AddressBalance, error) {
	row := &types.AddressBalance{PublicAddress: address, Token: token, Balance: "0"}
	err := c.store.bankDB.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(balancesBucket).Get(balanceKey(address, token))
		if enc == nil {
			return nil
		}
		return decode(enc, row)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not read balance")
	}
	return row, nil
}

func balanceKey(address, token string) []byte {
	return compositeKey([]byte(address), []byte("|"), []byte(token))
}
