package server

import (
	"context"
	"fmt"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/messaging"
	"google.golang.org/grpc/metadata"
)

// draftFromAPI parses the caller-owned fields of a new order
func draftFromAPI(d *api.OrderDraft) (*core.Order, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: empty order draft", core.ErrInvalidArgument)
	}
	return core.OrderFromMessaging(messaging.Order{
		UserSlippage:    d.UserSlippage,
		AlphaAsset:      d.AlphaAsset,
		BetaAsset:       d.BetaAsset,
		AlphaAssetPrice: d.AlphaAssetPrice,
		BetaAssetPrice:  d.BetaAssetPrice,
		Creator:         d.Creator,
	})
}

// orderFromAPI parses a full order as sent by ModifyOrder
func orderFromAPI(o *api.Order) (*core.Order, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: empty order", core.ErrInvalidArgument)
	}
	return core.OrderFromMessaging(*o)
}

func orderToAPI(o *core.Order) *api.Order {
	if o == nil {
		return nil
	}
	m := o.ToMessagingOrder()
	return &m
}

func ordersToAPI(orders []*core.Order) []*api.Order {
	out := make([]*api.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderToAPI(o))
	}
	return out
}

// callerFromContext returns the actor id carried in the incoming metadata
func callerFromContext(ctx context.Context) (core.ActorID, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errMissingCaller
	}
	actors := md.Get(api.ActorMetadataKey)
	if len(actors) == 0 || actors[0] == "" {
		return "", errMissingCaller
	}
	return core.ParseActorID(actors[0])
}
