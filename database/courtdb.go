// Package database persists court state between runs: dispute snapshots,
// stake custody records, settlements and the treasury counters.
package database

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/log"
)

type CourtDb struct {
	db  dbm.DB
	log log.Logger
}

func NewCourtDb(db dbm.DB) *CourtDb {
	return &CourtDb{db: db, log: log.New("component", "courtdb")}
}

// StakeRecord mirrors a staker's custody state.
type StakeRecord struct {
	Staker     common.Address `cbor:"1,keyasint"`
	Amount     uint64         `cbor:"2,keyasint"`
	Locked     uint64         `cbor:"3,keyasint"`
	Multiplier uint32         `cbor:"4,keyasint"`
}

// TreasuryRecord keeps the accumulated protocol cuts in both tokens.
type TreasuryRecord struct {
	Fee   uint64 `cbor:"1,keyasint"`
	Stake uint64 `cbor:"2,keyasint"`
}

// SettlementCut is one addressed amount inside a settlement record.
type SettlementCut struct {
	Address common.Address `cbor:"1,keyasint"`
	Amount  uint64         `cbor:"2,keyasint"`
}

// SettlementRecord mirrors the economic outcome of a closed dispute.
type SettlementRecord struct {
	Dispute       common.Hash     `cbor:"1,keyasint"`
	TreasuryFee   uint64          `cbor:"2,keyasint"`
	Rewards       []SettlementCut `cbor:"3,keyasint"`
	Refunds       []SettlementCut `cbor:"4,keyasint"`
	TreasuryStake uint64          `cbor:"5,keyasint"`
	StakeSlashes  []SettlementCut `cbor:"6,keyasint"`
	StakeCredits  []SettlementCut `cbor:"7,keyasint"`
}

func (c *CourtDb) put(key []byte, value []byte) {
	if err := c.db.Set(key, value); err != nil {
		c.log.Error("Cannot write court db", "err", err)
	}
}

func (c *CourtDb) WriteDisputeSnapshot(id common.Hash, data []byte) {
	c.put(disputeKey(id), data)
}

func (c *CourtDb) ReadDisputeSnapshot(id common.Hash) []byte {
	data, err := c.db.Get(disputeKey(id))
	if err != nil {
		c.log.Error("Cannot read dispute snapshot", "err", err)
		return nil
	}
	return data
}

func (c *CourtDb) RemoveDispute(id common.Hash) {
	if err := c.db.Delete(disputeKey(id)); err != nil {
		c.log.Error("Cannot delete dispute snapshot", "err", err)
	}
}

// IterateDisputes walks every stored dispute snapshot.
func (c *CourtDb) IterateDisputes(fn func(id common.Hash, data []byte) bool) error {
	it, err := c.db.Iterator(append(disputePrefix, common.MinHash[:]...), append(disputePrefix, common.MaxHash[:]...))
	if err != nil {
		return errors.Wrap(err, "dispute iterator")
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		id := common.BytesToHash(it.Key()[len(disputePrefix):])
		if !fn(id, it.Value()) {
			break
		}
	}
	return nil
}

func (c *CourtDb) WriteStake(record StakeRecord) {
	data, err := cbor.Marshal(record)
	if err != nil {
		c.log.Error("Cannot serialize stake record", "err", err)
		return
	}
	c.put(stakeKey(record.Staker), data)
}

func (c *CourtDb) ReadStake(staker common.Address) (StakeRecord, bool) {
	data, err := c.db.Get(stakeKey(staker))
	if err != nil || data == nil {
		return StakeRecord{}, false
	}
	record := StakeRecord{}
	if err := cbor.Unmarshal(data, &record); err != nil {
		c.log.Error("Cannot parse stake record", "err", err)
		return StakeRecord{}, false
	}
	return record, true
}

func (c *CourtDb) RemoveStake(staker common.Address) {
	if err := c.db.Delete(stakeKey(staker)); err != nil {
		c.log.Error("Cannot delete stake record", "err", err)
	}
}

// IterateStakes walks every custody record in key order.
func (c *CourtDb) IterateStakes(fn func(record StakeRecord) bool) error {
	it, err := c.db.Iterator(append(stakePrefix, common.MinAddr[:]...), append(stakePrefix, common.MaxAddr[:]...))
	if err != nil {
		return errors.Wrap(err, "stake iterator")
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		record := StakeRecord{}
		if err := cbor.Unmarshal(it.Value(), &record); err != nil {
			return errors.Wrap(err, "stake record")
		}
		if !fn(record) {
			break
		}
	}
	return nil
}

func (c *CourtDb) WriteSettlement(record SettlementRecord) {
	data, err := cbor.Marshal(record)
	if err != nil {
		c.log.Error("Cannot serialize settlement record", "err", err)
		return
	}
	c.put(settlementKey(record.Dispute), data)
}

func (c *CourtDb) ReadSettlement(id common.Hash) (SettlementRecord, bool) {
	data, err := c.db.Get(settlementKey(id))
	if err != nil || data == nil {
		return SettlementRecord{}, false
	}
	record := SettlementRecord{}
	if err := cbor.Unmarshal(data, &record); err != nil {
		c.log.Error("Cannot parse settlement record", "err", err)
		return SettlementRecord{}, false
	}
	return record, true
}

func (c *CourtDb) WriteEscrow(id common.Hash, amount uint64) {
	c.put(escrowKey(id), common.ToBytes(amount))
}

func (c *CourtDb) ReadEscrow(id common.Hash) uint64 {
	data, err := c.db.Get(escrowKey(id))
	if err != nil {
		return 0
	}
	return uint64FromBytes(data)
}

func (c *CourtDb) RemoveEscrow(id common.Hash) {
	if err := c.db.Delete(escrowKey(id)); err != nil {
		c.log.Error("Cannot delete escrow record", "err", err)
	}
}

func (c *CourtDb) WriteTreasury(fee, stake uint64) {
	data, err := cbor.Marshal(TreasuryRecord{Fee: fee, Stake: stake})
	if err != nil {
		c.log.Error("Cannot serialize treasury record", "err", err)
		return
	}
	c.put(treasuryKey, data)
}

func (c *CourtDb) ReadTreasury() TreasuryRecord {
	record := TreasuryRecord{}
	data, err := c.db.Get(treasuryKey)
	if err != nil || data == nil {
		return record
	}
	if err := cbor.Unmarshal(data, &record); err != nil {
		c.log.Error("Cannot parse treasury record", "err", err)
	}
	return record
}

func (c *CourtDb) WriteDisputeCounter(counter uint64) {
	c.put(counterKey, common.ToBytes(counter))
}

func (c *CourtDb) ReadDisputeCounter() uint64 {
	data, err := c.db.Get(counterKey)
	if err != nil {
		return 0
	}
	return uint64FromBytes(data)
}

func uint64FromBytes(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data)
}
