package cinema

import "fmt"

// InitialPrice 新建场次的座位单价（最小货币单位）
const InitialPrice int64 = 100

// MaxSeatsLimit 单场次座位数上限
const MaxSeatsLimit = 100

// Show 放映场次聚合
//
// 状态完全由事件流重建：pending 记录进行中的预订（reservationId -> 座位号），
// finished 记录已完结的预订（确认或取消）。两个集合合起来构成
// reservationId 的去重域。
type Show struct {
	ID       string
	Title    string
	Seats    map[int]Seat
	Pending  map[string]int
	Finished map[string]FinishedReservation
}

// NewShowCreated 处理创建命令，产生 ShowCreated 事件
//
// 座位从 0 开始编号，初始价格统一为 InitialPrice。
func NewShowCreated(showID string, cmd CreateShow) (ShowCreated, error) {
	if cmd.MaxSeats > MaxSeatsLimit {
		return ShowCreated{}, newShowError(ErrCodeTooManySeats,
			fmt.Sprintf("max seats %d exceeds limit %d", cmd.MaxSeats, MaxSeatsLimit), showID)
	}

	seats := make([]Seat, 0, cmd.MaxSeats)
	for i := 0; i < cmd.MaxSeats; i++ {
		seats = append(seats, Seat{Number: i, Status: SeatStatusAvailable, Price: InitialPrice})
	}
	return ShowCreated{ShowID: showID, Title: cmd.Title, Seats: seats}, nil
}

// NewShow 从 ShowCreated 事件构建聚合初始状态
func NewShow(created ShowCreated) *Show {
	seats := make(map[int]Seat, len(created.Seats))
	for _, seat := range created.Seats {
		seats[seat.Number] = seat
	}
	return &Show{
		ID:       created.ShowID,
		Title:    created.Title,
		Seats:    seats,
		Pending:  make(map[string]int),
		Finished: make(map[string]FinishedReservation),
	}
}

// Process 纯决策：根据当前状态处理命令，产生事件或业务错误
//
// 不修改聚合状态；状态变更只发生在 Apply。
func (s *Show) Process(cmd ShowCommand) (ShowEvent, error) {
	switch c := cmd.(type) {
	case CreateShow:
		return nil, newShowError(ErrCodeShowAlreadyExists, "show already exists", s.ID)
	case ReserveSeat:
		return s.handleReservation(c)
	case ConfirmReservationPayment:
		return s.handleConfirmation(c)
	case CancelSeatReservation:
		return s.handleCancellation(c)
	default:
		return nil, newShowError(ErrCodeCorruptedState, fmt.Sprintf("unknown command %T", cmd), s.ID)
	}
}

func (s *Show) handleReservation(cmd ReserveSeat) (ShowEvent, error) {
	if s.isDuplicate(cmd.ReservationID) {
		return nil, &ShowError{Code: ErrCodeDuplicatedCommand, Message: "duplicated reservation", ShowID: s.ID, ReservationID: cmd.ReservationID}
	}

	seat, exists := s.Seats[cmd.SeatNumber]
	if !exists {
		return nil, newShowError(ErrCodeSeatNotExists, fmt.Sprintf("seat %d does not exist", cmd.SeatNumber), s.ID)
	}
	if !seat.IsAvailable() {
		return nil, newShowError(ErrCodeSeatNotAvailable, fmt.Sprintf("seat %d is not available", cmd.SeatNumber), s.ID)
	}

	return SeatReserved{
		ShowID:        s.ID,
		WalletID:      cmd.WalletID,
		ReservationID: cmd.ReservationID,
		SeatNumber:    cmd.SeatNumber,
		Price:         seat.Price,
	}, nil
}

func (s *Show) handleConfirmation(cmd ConfirmReservationPayment) (ShowEvent, error) {
	if seatNumber, pending := s.Pending[cmd.ReservationID]; pending {
		if _, exists := s.Seats[seatNumber]; !exists {
			return nil, newShowError(ErrCodeSeatNotExists, fmt.Sprintf("seat %d does not exist", seatNumber), s.ID)
		}
		return SeatReservationPaid{ShowID: s.ID, ReservationID: cmd.ReservationID, SeatNumber: seatNumber}, nil
	}

	if finished, ok := s.Finished[cmd.ReservationID]; ok {
		if finished.IsConfirmed() {
			return nil, &ShowError{Code: ErrCodeDuplicatedCommand, Message: "reservation already confirmed", ShowID: s.ID, ReservationID: cmd.ReservationID}
		}
		// 迟到的确认：预订已取消，只产生对账事件，座位状态不变
		return CancelledReservationConfirmed{ShowID: s.ID, ReservationID: cmd.ReservationID, SeatNumber: finished.SeatNumber}, nil
	}

	return nil, &ShowError{Code: ErrCodeReservationNotFound, Message: "reservation not found", ShowID: s.ID, ReservationID: cmd.ReservationID}
}

func (s *Show) handleCancellation(cmd CancelSeatReservation) (ShowEvent, error) {
	if seatNumber, pending := s.Pending[cmd.ReservationID]; pending {
		if _, exists := s.Seats[seatNumber]; !exists {
			return nil, newShowError(ErrCodeSeatNotExists, fmt.Sprintf("seat %d does not exist", seatNumber), s.ID)
		}
		return SeatReservationCancelled{ShowID: s.ID, ReservationID: cmd.ReservationID, SeatNumber: seatNumber}, nil
	}

	if finished, ok := s.Finished[cmd.ReservationID]; ok {
		if finished.IsCancelled() {
			return nil, &ShowError{Code: ErrCodeDuplicatedCommand, Message: "reservation already cancelled", ShowID: s.ID, ReservationID: cmd.ReservationID}
		}
		// 已确认的预订不允许取消，属于不可恢复的流程错误
		return nil, &ShowError{Code: ErrCodeCancellingConfirmedReservation, Message: "cancelling confirmed reservation", ShowID: s.ID, ReservationID: cmd.ReservationID}
	}

	return nil, &ShowError{Code: ErrCodeReservationNotFound, Message: "reservation not found", ShowID: s.ID, ReservationID: cmd.ReservationID}
}

func (s *Show) isDuplicate(reservationID string) bool {
	if _, ok := s.Pending[reservationID]; ok {
		return true
	}
	_, ok := s.Finished[reservationID]
	return ok
}

// Apply 状态转移：把事件施加到聚合上
//
// 事件引用不存在的座位说明事件流已损坏，返回 CorruptedState。
func (s *Show) Apply(event ShowEvent) error {
	switch e := event.(type) {
	case ShowCreated:
		return newShowError(ErrCodeCorruptedState, "show is already created, use NewShow instead", s.ID)
	case SeatReserved:
		seat, exists := s.Seats[e.SeatNumber]
		if !exists {
			return s.corruptedSeat(e.SeatNumber)
		}
		s.Seats[e.SeatNumber] = seat.reserved()
		s.Pending[e.ReservationID] = e.SeatNumber
		return nil
	case SeatReservationPaid:
		seat, exists := s.Seats[e.SeatNumber]
		if !exists {
			return s.corruptedSeat(e.SeatNumber)
		}
		s.Seats[e.SeatNumber] = seat.paid()
		delete(s.Pending, e.ReservationID)
		s.Finished[e.ReservationID] = FinishedReservation{ReservationID: e.ReservationID, SeatNumber: e.SeatNumber, Status: ReservationConfirmed}
		return nil
	case SeatReservationCancelled:
		seat, exists := s.Seats[e.SeatNumber]
		if !exists {
			return s.corruptedSeat(e.SeatNumber)
		}
		s.Seats[e.SeatNumber] = seat.available()
		delete(s.Pending, e.ReservationID)
		s.Finished[e.ReservationID] = FinishedReservation{ReservationID: e.ReservationID, SeatNumber: e.SeatNumber, Status: ReservationCancelled}
		return nil
	case CancelledReservationConfirmed:
		// 只用于对账，状态不变
		return nil
	default:
		return newShowError(ErrCodeCorruptedState, fmt.Sprintf("unknown event %T", event), s.ID)
	}
}

func (s *Show) corruptedSeat(seatNumber int) error {
	return newShowError(ErrCodeCorruptedState, fmt.Sprintf("seat %d does not exist in state", seatNumber), s.ID)
}

// GetSeat 查询座位
func (s *Show) GetSeat(seatNumber int) (Seat, bool) {
	seat, ok := s.Seats[seatNumber]
	return seat, ok
}
