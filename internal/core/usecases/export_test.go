package usecases

import "time"

func (s *MapService) SetNow(fn func() time.Time) { s.now = fn }

func (s *SponsorshipService) SetNow(fn func() time.Time) { s.now = fn }

func (s *CouponService) SetNow(fn func() time.Time) { s.now = fn }
