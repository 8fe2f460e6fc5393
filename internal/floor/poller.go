package floor

import (
	"context"
	"fmt"
	"sync"

	"floorsync/internal/client"
	"floorsync/internal/models"

	"go.uber.org/zap"
)

// Poller 运营状态轮询器
// 周期性拉取 entity 的未结订单列表，把每个订单按确定性的状态码
// 规则映射为桌台运营状态，并原子地整体替换输出集合。
// 刷新失败时保留上一次成功的结果——宁可读到至多一个周期的旧数据，
// 也不能让失败清掉已知良好的状态。
type Poller struct {
	api    *client.Client
	logger *zap.Logger
	entity string

	mu     sync.RWMutex
	states []models.TableState
}

// NewPoller 创建运营状态轮询器
func NewPoller(api *client.Client, entity string, logger *zap.Logger) *Poller {
	return &Poller{api: api, entity: entity, logger: logger}
}

// Refresh 拉取订单列表并重建运营状态集合
// silent 为 true 表示后台定时触发：失败只记日志，错误仍会返回给
// 调用方，由引擎决定是否呈现（后台失败不弹新错误覆盖用户操作）。
func (p *Poller) Refresh(ctx context.Context, silent bool) ([]models.TableState, error) {
	var orders []models.Order
	err := p.api.Get(ctx, fmt.Sprintf("/proposals/%s", p.entity), &orders)
	if err != nil {
		if silent {
			p.logger.Warn("Background poll failed, keeping previous state",
				zap.String("entity", p.entity),
				zap.Error(err),
			)
		} else {
			p.logger.Error("Operational state refresh failed",
				zap.String("entity", p.entity),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("failed to refresh operational state: %w", err)
	}

	states := make([]models.TableState, 0, len(orders))
	for _, o := range orders {
		states = append(states, models.StateFromOrder(o))
	}

	p.mu.Lock()
	p.states = states
	p.mu.Unlock()

	p.logger.Debug("Operational state refreshed",
		zap.String("entity", p.entity),
		zap.Int("open_orders", len(states)),
	)
	return states, nil
}

// States 返回运营状态集合的副本
func (p *Poller) States() []models.TableState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	states := make([]models.TableState, len(p.states))
	copy(states, p.states)
	return states
}

// StateFor 返回指定桌号的运营状态
// 没有对应订单的桌台为 LIBRE（隐式状态：无未结订单）。
func (p *Poller) StateFor(numero int) models.TableState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.states {
		if s.Numero == numero {
			return s
		}
	}
	return models.TableState{Numero: numero, Status: models.StatusLibre}
}
