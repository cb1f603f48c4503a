// Package hook provides library beforeSave hooks.
package hook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/record"
	"github.com/artpar/warpmodel/core/schema"
	"github.com/artpar/warpmodel/ports"
)

// DefaultSessionDays is how long a session stays valid when no duration is given.
const DefaultSessionDays = 30

// Session returns a beforeSave hook for session records. On creation it
// sets session_token from the referenced user and a random id, and
// revoked_at to now plus days. Other operations pass through untouched.
func Session(days int, ids ports.IDGenerator, clock ports.Clock) schema.BeforeSaveFunc {
	if days <= 0 {
		days = DefaultSessionDays
	}

	return func(ctx context.Context, req *record.Request, res record.Response) {
		if !req.IsNew {
			res.Success()
			return
		}

		user, _ := req.Keys.Get("user")
		ref, ok := user.(field.Reference)
		if !ok {
			res.Error("session requires a `user` pointer")
			return
		}

		token := userPart(ref.ID) + "+" + strings.ReplaceAll(ids.New(), "-", "")
		revokedAt := clock.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)

		if err := req.Keys.Set("session_token", token); err != nil {
			res.Error(err.Error())
			return
		}
		if err := req.Keys.Set("revoked_at", revokedAt.Format(field.StoredTimeLayout)); err != nil {
			res.Error(err.Error())
			return
		}

		res.Success()
	}
}

func userPart(id any) string {
	switch v := id.(type) {
	case int64:
		return strconv.FormatInt(v*1024*1024, 36)
	case int:
		return strconv.FormatInt(int64(v)*1024*1024, 36)
	default:
		return fmt.Sprint(v)
	}
}
