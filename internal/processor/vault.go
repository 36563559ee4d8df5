package processor

import (
	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/authority"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// Accounts: initializer[s], vault, token program.
func (c *call) transferVault(auth authority.Authority) error {
	initializer, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.rentExempt(vault); err != nil {
		return err
	}
	if err := auth.TakeOwnership(c.p.tokens, vault, initializer); err != nil {
		return err
	}
	c.p.logger.Info("vault ownership transferred",
		"vault", vault.Key.String(),
		"label", auth.Label(),
		"authority", auth.Address.String(),
	)
	return nil
}

// Accounts: user[s], airdrop record, user token, airdrop vault, token
// program, airdrop authority.
func (c *call) airdropTestCoins() error {
	user, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	record, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	userToken, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(4)
	if err != nil {
		return err
	}
	auth, err := c.Accounts.Get(5)
	if err != nil {
		return err
	}

	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.p.airdrop.CheckAccount(auth); err != nil {
		return err
	}
	if err := c.p.airdrop.CheckVault(vault); err != nil {
		return err
	}
	want, err := pubkey.CreateWithSeed(user.Key, authority.AirdropLabel, c.p.programID)
	if err != nil {
		return errcode.New(errcode.AccountMismatched, "derive airdrop record: %v", err)
	}
	if record.Key != want {
		return errcode.New(errcode.AccountMismatched, "airdrop record %s, want %s", record.Key, want)
	}
	if err := c.owned(record); err != nil {
		return err
	}
	if err := tokenOwnedBy(userToken, user.Key); err != nil {
		return err
	}

	rec, err := codec.UnpackAirdropRecord(record.Data)
	if err != nil {
		return recordError(record, err)
	}
	total, err := amount.Add(rec.Total, c.p.params.AirdropAmount)
	if err != nil {
		return err
	}
	if rec.Total >= c.p.params.AirdropCap || total > c.p.params.AirdropCap {
		return errcode.New(errcode.UserAlreadyAirdroped, "user %s received %s of %s",
			user.Key, amount.Format(rec.Total), amount.Format(c.p.params.AirdropCap))
	}
	rec.Total = total

	if err := c.p.airdrop.Release(c.p.tokens, vault, userToken, c.p.params.AirdropAmount); err != nil {
		return err
	}
	if err := rec.Pack(record.Data); err != nil {
		return recordError(record, err)
	}
	c.p.logger.Info("test coins airdropped",
		"user", user.Key.String(),
		"amount", amount.Format(c.p.params.AirdropAmount),
		"total", amount.Format(rec.Total),
	)
	return nil
}
