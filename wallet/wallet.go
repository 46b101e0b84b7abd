package wallet

import "fmt"

// DedupRingCapacity 去重环容量，超出后淘汰最旧的命令键
const DedupRingCapacity = 1000

// Expense 一笔已扣款的费用
type Expense struct {
	ExpenseID string `json:"expense_id"`
	Amount    int64  `json:"amount"`
}

// Wallet 钱包聚合
//
// Balance 以最小货币单位计。Expenses 记录可退款的费用。
// 命令去重靠有序去重环：commandIDs 保持插入顺序，
// commandIDSet 提供成员查询，满员时淘汰最旧的键。
type Wallet struct {
	ID       string
	Balance  int64
	Expenses map[string]Expense

	commandIDs   []string
	commandIDSet map[string]struct{}
}

// NewWalletCreated 处理创建命令，产生 WalletCreated 事件
func NewWalletCreated(walletID string, cmd CreateWallet) WalletCreated {
	return WalletCreated{WalletID: walletID, InitialBalance: cmd.InitialBalance}
}

// NewWallet 从 WalletCreated 事件构建聚合初始状态
func NewWallet(created WalletCreated) *Wallet {
	return &Wallet{
		ID:           created.WalletID,
		Balance:      created.InitialBalance,
		Expenses:     make(map[string]Expense),
		commandIDs:   make([]string, 0, 16),
		commandIDSet: make(map[string]struct{}),
	}
}

// Process 纯决策：根据当前状态处理命令，产生事件或业务错误
//
// 去重检查先于一切业务规则：重复命令一律按 DUPLICATED_COMMAND
// 拒绝，由应用服务转为幂等成功。余额不足产生 WalletChargeRejected
// 事件而不是错误。
func (w *Wallet) Process(cmd WalletCommand) (WalletEvent, error) {
	if deduplicated, ok := cmd.(DeduplicatedCommand); ok {
		if w.isDuplicate(deduplicated.DedupID()) {
			return nil, newWalletError(ErrCodeDuplicatedCommand,
				fmt.Sprintf("command %s already processed", deduplicated.DedupID()), w.ID)
		}
	}

	switch c := cmd.(type) {
	case CreateWallet:
		return nil, newWalletError(ErrCodeWalletAlreadyExists, "wallet already exists", w.ID)
	case ChargeWallet:
		return w.handleCharge(c), nil
	case DepositFunds:
		if c.Amount <= 0 {
			return nil, newWalletError(ErrCodeDepositMustBePositive,
				fmt.Sprintf("deposit amount %d must be positive", c.Amount), w.ID)
		}
		return FundsDeposited{WalletID: w.ID, Amount: c.Amount, CommandID: c.CommandID}, nil
	case Refund:
		expense, ok := w.Expenses[c.ExpenseID]
		if !ok {
			return nil, newWalletError(ErrCodeExpenseNotFound,
				fmt.Sprintf("expense %s not found", c.ExpenseID), w.ID)
		}
		return WalletRefunded{WalletID: w.ID, Amount: expense.Amount, ExpenseID: c.ExpenseID, CommandID: c.CommandID}, nil
	default:
		return nil, newWalletError(ErrCodeCorruptedState, fmt.Sprintf("unknown command %T", cmd), w.ID)
	}
}

func (w *Wallet) handleCharge(cmd ChargeWallet) WalletEvent {
	if w.Balance < cmd.Amount {
		return WalletChargeRejected{WalletID: w.ID, ExpenseID: cmd.ExpenseID}
	}
	return WalletCharged{WalletID: w.ID, Amount: cmd.Amount, ExpenseID: cmd.ExpenseID, CommandID: cmd.CommandID}
}

func (w *Wallet) isDuplicate(commandID string) bool {
	_, ok := w.commandIDSet[commandID]
	return ok
}

// Apply 状态转移：把事件施加到聚合上
//
// WalletChargeRejected 不记录去重键：被拒绝的扣款允许在充值后重试。
func (w *Wallet) Apply(event WalletEvent) error {
	switch e := event.(type) {
	case WalletCreated:
		return newWalletError(ErrCodeCorruptedState, "wallet is already created, use NewWallet instead", w.ID)
	case WalletCharged:
		w.Balance -= e.Amount
		w.Expenses[e.ExpenseID] = Expense{ExpenseID: e.ExpenseID, Amount: e.Amount}
		w.recordCommandID(e.CommandID)
		return nil
	case WalletChargeRejected:
		return nil
	case FundsDeposited:
		w.Balance += e.Amount
		w.recordCommandID(e.CommandID)
		return nil
	case WalletRefunded:
		w.Balance += e.Amount
		delete(w.Expenses, e.ExpenseID)
		w.recordCommandID(e.CommandID)
		return nil
	default:
		return newWalletError(ErrCodeCorruptedState, fmt.Sprintf("unknown event %T", event), w.ID)
	}
}

func (w *Wallet) recordCommandID(commandID string) {
	if _, ok := w.commandIDSet[commandID]; ok {
		return
	}
	if len(w.commandIDs) >= DedupRingCapacity {
		oldest := w.commandIDs[0]
		w.commandIDs = w.commandIDs[1:]
		delete(w.commandIDSet, oldest)
	}
	w.commandIDs = append(w.commandIDs, commandID)
	w.commandIDSet[commandID] = struct{}{}
}

// GetExpense 查询费用
func (w *Wallet) GetExpense(expenseID string) (Expense, bool) {
	expense, ok := w.Expenses[expenseID]
	return expense, ok
}
