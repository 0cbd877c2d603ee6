package exchange

import ethcommon "github.com/ethereum/go-ethereum/common"

// SetFee replaces the global per-mille fee deducted from every swap output.
func (e *Engine) SetFee(caller ethcommon.Address, feeMille uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if feeMille >= MaxFeeMille {
		return ErrInvalidFee
	}
	previous, err := e.GetFee()
	if err != nil {
		return err
	}
	if err := e.state.ExchangeFeePut(feeMille); err != nil {
		return err
	}
	e.emit(FeeUpdatedEvent(caller, previous, feeMille))
	return nil
}

// GetFee returns the per-mille fee. An unset fee is zero.
func (e *Engine) GetFee() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	fee, ok, err := e.state.ExchangeFeeGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return fee, nil
}

// SetServiceCharge replaces the flat native-value charge every swap must
// attach. It does not interact with the per-mille fee.
func (e *Engine) SetServiceCharge(caller ethcommon.Address, charge ServiceCharge) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	normalized := charge.Clone()
	if err := e.state.ExchangeServiceChargePut(normalized); err != nil {
		return err
	}
	e.emit(ServiceChargeUpdatedEvent(caller, normalized))
	return nil
}

// GetServiceCharge returns the stored charge, falling back to the engine's
// configured default when the owner never wrote one.
func (e *Engine) GetServiceCharge() (ServiceCharge, error) {
	if e == nil || e.state == nil {
		return ServiceCharge{}, errNilState
	}
	charge, ok, err := e.state.ExchangeServiceChargeGet()
	if err != nil {
		return ServiceCharge{}, err
	}
	if !ok {
		return e.defaultCharge.Clone(), nil
	}
	return charge.Clone(), nil
}
