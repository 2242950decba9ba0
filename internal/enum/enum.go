package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusNew       = "NEW"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

const (
	AttendanceTypeClockIn  = "CLOCK_IN"
	AttendanceTypeClockOut = "CLOCK_OUT"
)

const (
	AttendanceStatusApproved = "APPROVED"
	AttendanceStatusRejected = "REJECTED"
)

// Daily clock status derived from the latest record of the day.
const (
	ClockStatusNotClockedIn = "NOT_CLOCKED_IN"
	ClockStatusClockedIn    = "CLOCKED_IN"
	ClockStatusClockedOut   = "CLOCKED_OUT"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeOnline   = "ONLINE"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodGateway  = "GATEWAY"
)

const (
	VoucherTypePercentage  = "PERCENTAGE"
	VoucherTypeFixedAmount = "FIXED_AMOUNT"
	VoucherTypeFreeItem    = "FREE_ITEM"
	VoucherTypeBuyXGetY    = "BUY_X_GET_Y"
)
