package indexer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
	"github.com/Hushnetwork-social/hush-server-node-sub008/db/iface"
)

// RewardStrategy credits the block producer for an assembled block. Each
// transaction id is applied at most once; replays find it marked and skip.
type RewardStrategy struct {
	bank iface.BankContext
}

// NewRewardStrategy wires the reward strategy.
func NewRewardStrategy(bank iface.BankContext) *RewardStrategy {
	return &RewardStrategy{bank: bank}
}

// CanHandle reports whether the transaction carries a reward.
func (s *RewardStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindReward
}

// Handle credits the issuer. The mark and the credit commit together.
func (s *RewardStrategy) Handle(_ context.Context, _ types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	reward, ok := payload.(*types.RewardPayload)
	if !ok {
		return errors.Errorf("unexpected payload for reward: %T", payload)
	}
	amount, err := decimal.NewFromString(reward.Amount)
	if err != nil {
		return errors.Wrap(err, "invalid reward amount")
	}

	uow, err := s.bank.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	applied, err := uow.MarkApplied(tx.ID)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if err := uow.Credit(reward.IssuerPublicAddress, reward.Token, amount); err != nil {
		return err
	}
	return uow.Commit()
}

// FundsStrategy moves an amount between two addresses in a single unit of
// work. A transfer that would drive the sender negative is skipped, not
// failed: the block is already committed and balances must stay consistent.
type FundsStrategy struct {
	bank iface.BankContext
}

// NewFundsStrategy wires the funds strategy.
func NewFundsStrategy(bank iface.BankContext) *FundsStrategy {
	return &FundsStrategy{bank: bank}
}

// CanHandle reports whether the transaction carries a funds transfer.
func (s *FundsStrategy) CanHandle(tx *types.ValidatedTransaction) bool {
	return tx.PayloadKind == types.KindSendFunds
}

// Handle debits the sender and credits the receiver atomically.
func (s *FundsStrategy) Handle(_ context.Context, _ types.BlockIndex, tx *types.ValidatedTransaction) error {
	payload, err := tx.DecodedPayload()
	if err != nil {
		return err
	}
	transfer, ok := payload.(*types.SendFundsPayload)
	if !ok {
		return errors.Errorf("unexpected payload for funds transfer: %T", payload)
	}
	amount, err := decimal.NewFromString(transfer.Amount)
	if err != nil {
		return errors.Wrap(err, "invalid transfer amount")
	}
	if amount.IsNegative() {
		return errors.New("transfer amount must not be negative")
	}

	uow, err := s.bank.Writable()
	if err != nil {
		return err
	}
	defer rollback(uow)
	applied, err := uow.MarkApplied(tx.ID)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if err := uow.Debit(transfer.FromAddress, transfer.Token, amount); err != nil {
		if errors.Is(err, iface.ErrInsufficientFunds) {
			log.WithFields(logrus.Fields{
				"tx":   tx.ID,
				"from": transfer.FromAddress,
			}).Warn("Skipping transfer, insufficient funds")
			return uow.Commit()
		}
		return err
	}
	if err := uow.Credit(transfer.ToAddress, transfer.Token, amount); err != nil {
		return err
	}
	return uow.Commit()
}

func rollback(uow iface.UnitOfWork) {
	if err := uow.Rollback(); err != nil {
		log.WithError(err).Error("Could not roll back index unit of work")
	}
}
