package formance

import (
	"context"
	"fmt"
	"strings"

	"iamblessed-funnel-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"go.uber.org/zap"
)

// DescribeParticipant tags the participant's wallet account with directory
// metadata so the ledger can be browsed without the funnel database.
func (s *Service) DescribeParticipant(ctx context.Context, p models.Participant) error {
	addr := participantAccount(p.Id)
	_, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		RequestBody: map[string]string{
			"entity_type": "participant",
			"name":        p.Name,
			"email":       p.Email,
			"role":        p.Role,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to tag participant account: %w", err)
	}
	zap.L().Debug("Participant account tagged in Formance", zap.String("address", addr))
	return nil
}

// ParticipantAccounts lists the participant ids that have a wallet account in the ledger.
func (s *Service) ParticipantAccounts(ctx context.Context) ([]string, error) {
	resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
		Ledger:   s.ledger,
		PageSize: ptrInt64(100),
		RequestBody: map[string]any{
			"$match": map[string]any{
				"metadata[entity_type]": "participant",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participant accounts: %w", err)
	}

	var ids []string
	for _, acct := range resp.V2AccountsCursorResponse.Cursor.Data {
		parts := strings.Split(acct.Address, ":")
		if len(parts) == 2 && parts[0] == "participants" && !isPlatformAccount(acct.Address) {
			ids = append(ids, parts[1])
		}
	}
	return ids, nil
}
