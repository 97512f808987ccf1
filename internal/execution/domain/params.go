package domain

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// SpeedOfFill 成交速度档位，决定改价间隔与最大重试次数
type SpeedOfFill string

const (
	SpeedOfFillFast    SpeedOfFill = "Fast"
	SpeedOfFillNormal  SpeedOfFill = "Normal"
	SpeedOfFillPatient SpeedOfFill = "Patient"
)

type fillProfile struct {
	interval   time.Duration
	maxRetries int
}

// 档位常量不可单独调整
var fillProfiles = map[SpeedOfFill]fillProfile{
	SpeedOfFillFast:    {interval: 1 * time.Minute, maxRetries: 3},
	SpeedOfFillNormal:  {interval: 3 * time.Minute, maxRetries: 5},
	SpeedOfFillPatient: {interval: 5 * time.Minute, maxRetries: 7},
}

// Profile 返回档位对应的 (改价间隔, 最大重试次数)
func (s SpeedOfFill) Profile() (time.Duration, int, error) {
	p, ok := fillProfiles[s]
	if !ok {
		return 0, 0, fmt.Errorf("%w: invalid speedOfFillProfile %q", ErrConfiguration, string(s))
	}
	return p.interval, p.maxRetries, nil
}

// ExecutionParameters 限价单智能定价参数
type ExecutionParameters struct {
	// 每次重试的价格变动比例，基于上一次的价格
	RetryChangePct decimal.Decimal `json:"retry_change_pct" validate:"gt=0,lte=1"`
	// 最差可接受价格占原始价格的比例
	MinPricePct decimal.Decimal `json:"min_price_pct" validate:"gt=0,lte=1"`
	// 首次挂单相对原始价格的调整比例，负数表示争取更优价格
	OrderAdjustmentPct decimal.Decimal `json:"order_adjustment_pct" validate:"gt=-1,lt=1"`
	// 绝对价格步长，设置后替代百分比步进（如 SPX 期权）
	AdjustmentIncrement decimal.NullDecimal `json:"adjustment_increment" validate:"-"`
	// 成交速度档位
	SpeedOfFill SpeedOfFill `json:"speed_of_fill" validate:"oneof=Fast Normal Patient"`
}

// DefaultParameters 返回内置默认参数
func DefaultParameters() ExecutionParameters {
	return ExecutionParameters{
		RetryChangePct:     decimal.NewFromInt(1),
		MinPricePct:        decimal.NewFromFloat(0.7),
		OrderAdjustmentPct: decimal.NewFromFloat(-0.2),
		SpeedOfFill:        SpeedOfFillFast,
	}
}

// ResolvedParameters 合并并校验后的参数，构造后不可变
type ResolvedParameters struct {
	ExecutionParameters
	RetryInterval time.Duration `json:"retry_interval"`
	MaxRetries    int           `json:"max_retries"`
}

// Grid 返回价格网格：优先使用 AdjustmentIncrement，否则使用合约 tick
func (p *ResolvedParameters) Grid(tick decimal.Decimal) decimal.Decimal {
	if p.AdjustmentIncrement.Valid {
		return p.AdjustmentIncrement.Decimal
	}
	return tick
}

// Overrides 一层覆盖参数，nil 字段表示不覆盖
type Overrides struct {
	RetryChangePct      *decimal.Decimal
	MinPricePct         *decimal.Decimal
	OrderAdjustmentPct  *decimal.Decimal
	AdjustmentIncrement *decimal.Decimal
	SpeedOfFill         *SpeedOfFill
	// Unused 未识别的键，允许存在但不生效
	Unused []string
	// Ignored 已识别但不生效的键（maxRetries 由档位决定）
	Ignored []string
}

type overridesDTO struct {
	RetryChangePct      *float64 `mapstructure:"retryChangePct"`
	MinPricePct         *float64 `mapstructure:"minPricePct"`
	OrderAdjustmentPct  *float64 `mapstructure:"orderAdjustmentPct"`
	AdjustmentIncrement *float64 `mapstructure:"adjustmentIncrement"`
	SpeedOfFillProfile  *string  `mapstructure:"speedOfFillProfile"`
	SpeedOfFill         *string  `mapstructure:"speedOfFill"`
	MaxRetries          *int     `mapstructure:"maxRetries"`
}

// DecodeOverrides 把键值形式的覆盖集解码为 Overrides，键名大小写不敏感
func DecodeOverrides(raw map[string]any) (Overrides, error) {
	var (
		dto overridesDTO
		md  mapstructure.Metadata
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &dto,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Overrides{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := dec.Decode(raw); err != nil {
		return Overrides{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	o := Overrides{
		RetryChangePct:      decimalPtr(dto.RetryChangePct),
		MinPricePct:         decimalPtr(dto.MinPricePct),
		OrderAdjustmentPct:  decimalPtr(dto.OrderAdjustmentPct),
		AdjustmentIncrement: decimalPtr(dto.AdjustmentIncrement),
		Unused:              md.Unused,
	}
	speed := dto.SpeedOfFillProfile
	if speed == nil {
		speed = dto.SpeedOfFill
	}
	if speed != nil {
		s := SpeedOfFill(strings.TrimSpace(*speed))
		o.SpeedOfFill = &s
	}
	if dto.MaxRetries != nil {
		o.Ignored = append(o.Ignored, "maxRetries")
	}
	sort.Strings(o.Unused)
	return o, nil
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

// Resolve 依次应用各层覆盖（后者优先），校验后返回不可变参数
func Resolve(base ExecutionParameters, layers ...Overrides) (*ResolvedParameters, error) {
	merged := base
	for _, o := range layers {
		if o.RetryChangePct != nil {
			merged.RetryChangePct = *o.RetryChangePct
		}
		if o.MinPricePct != nil {
			merged.MinPricePct = *o.MinPricePct
		}
		if o.OrderAdjustmentPct != nil {
			merged.OrderAdjustmentPct = *o.OrderAdjustmentPct
		}
		if o.AdjustmentIncrement != nil {
			merged.AdjustmentIncrement = decimal.NullDecimal{Decimal: *o.AdjustmentIncrement, Valid: true}
		}
		if o.SpeedOfFill != nil {
			merged.SpeedOfFill = *o.SpeedOfFill
		}
	}

	interval, maxRetries, err := merged.SpeedOfFill.Profile()
	if err != nil {
		return nil, err
	}
	if err := paramValidator.Struct(merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if merged.AdjustmentIncrement.Valid && !merged.AdjustmentIncrement.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: adjustmentIncrement must be positive, got %s",
			ErrConfiguration, merged.AdjustmentIncrement.Decimal)
	}

	return &ResolvedParameters{
		ExecutionParameters: merged,
		RetryInterval:       interval,
		MaxRetries:          maxRetries,
	}, nil
}

var paramValidator = newParamValidator()

func newParamValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}
