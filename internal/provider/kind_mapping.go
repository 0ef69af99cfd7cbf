package provider

import (
	"strings"

	"defi_portfolio/internal/entity"
)

// moduleFromHint maps a provider's free-form module/name hint onto the
// closed ModuleKind set. Unrecognized hints become ModuleOther.
func moduleFromHint(hint string) entity.ModuleKind {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch {
	case strings.Contains(h, "farm"):
		return entity.ModuleFarming
	case strings.Contains(h, "lend"), strings.Contains(h, "borrow"):
		return entity.ModuleLending
	case strings.Contains(h, "stak"):
		return entity.ModuleStaking
	case strings.Contains(h, "liquidity"), strings.Contains(h, "pool"):
		return entity.ModuleLiquidity
	case strings.Contains(h, "yield"), strings.Contains(h, "vault"), strings.Contains(h, "deposit"):
		return entity.ModuleYield
	default:
		return entity.ModuleOther
	}
}

// kindFromTypeAndModule maps a provider position type plus a module hint
// onto the canonical PositionKind. The mapping is closed: anything
// unmapped is PositionKindOther, never a silent default.
func kindFromTypeAndModule(positionType string, module entity.ModuleKind) entity.PositionKind {
	switch strings.ToLower(strings.TrimSpace(positionType)) {
	case "deposit", "supplied", "supply":
		// A plain deposit under a yield module is a yield position, not a
		// generic supply.
		if module == entity.ModuleYield {
			return entity.PositionKindYield
		}
		return entity.PositionKindSupplied
	case "loan", "borrow", "borrowed", "debt":
		return entity.PositionKindBorrowed
	case "staked", "stake", "staking":
		return entity.PositionKindStaked
	case "farming", "farm":
		return entity.PositionKindFarming
	case "yield":
		return entity.PositionKindYield
	case "liquidity", "lp":
		return entity.PositionKindLiquidity
	case "reward", "rewards", "claimable":
		return entity.PositionKindReward
	case "vested", "vesting":
		return entity.PositionKindVested
	case "locked", "lock":
		return entity.PositionKindLocked
	default:
		return entity.PositionKindOther
	}
}

// roleForKind derives the token role a standalone entry carries from its
// mapped kind, so ungrouped positions keep the same role semantics as
// merged groups.
func roleForKind(kind entity.PositionKind) entity.TokenRole {
	switch kind {
	case entity.PositionKindBorrowed:
		return entity.TokenRoleBorrowed
	case entity.PositionKindReward:
		return entity.TokenRoleReward
	case entity.PositionKindSupplied, entity.PositionKindStaked, entity.PositionKindYield:
		return entity.TokenRoleSupplied
	default:
		return entity.TokenRoleGeneric
	}
}
